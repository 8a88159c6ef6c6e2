package agent

import (
	"fmt"
	"time"
)

const holidayListFormat = `{"Result": [{"date": "YYYY-MM-DD", "name": "紀念日名稱"}]}`

const addDecisionFormat = `{"Result": {"add": true 或 false, "reason": "描述為什麼需要或不需要新增節日，具體說明是否該節日已經存在於清單中，以及當前清單的內容"}}`

const imageAnswerFormat = `{"Result": {"answer": 答案}}`

func hw01Prompt(question string) string {
	return fmt.Sprintf("請回答以下問題並以 JSON 格式輸出，格式如下: %s: %s", holidayListFormat, question)
}

func hw02Prompt(question string) string {
	return fmt.Sprintf("請查詢並回答以下問題，以 JSON 格式輸出，格式如下: %s: %s", holidayListFormat, question)
}

func hw03Prompt(question string) string {
	return fmt.Sprintf("根據先前的節日清單，判斷這個節日是否需要加入該月份的清單: %s\n請以 JSON 格式輸出，格式如下: %s", question, addDecisionFormat)
}

func hw04Prompt(question string) string {
	return fmt.Sprintf("請根據圖片回答以下問題並以 JSON 格式輸出，數字請以數值表示，格式如下: %s: %s", imageAnswerFormat, question)
}

func holidaySystemPrompt(now time.Time) string {
	return fmt.Sprintf(`You are a holiday and memorial day assistant for Taiwan. Today is %s.

- Use the get_holidays tool whenever the question is about holidays, memorial days or observances of a specific year or month. Do not guess dates.
- If the question does not name a country, assume Taiwan (TW).
- Answer in Traditional Chinese.
- When a JSON format is requested, reply with that JSON object only, without code fences or commentary.`, now.Format("2006-01-02"))
}
