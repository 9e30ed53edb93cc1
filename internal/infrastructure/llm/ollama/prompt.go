package ollama

func buildDatePrompt(text string) string {
	return `You extract calendar dates from an SEC enforcement release.
Return strict JSON object {"dates": [{"year": number, "month": number, "text": string}]}.
List every mention that names a specific month, or a quarter or half of a specific year.
For a quarter use its first month (Q1=1, Q2=4, Q3=7, Q4=10); for a half use 1 or 7.
"text" must be copied verbatim from the document. Skip years mentioned without a month or quarter.
No markdown, no extra keys.

Document:
` + text
}
