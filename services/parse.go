package services

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"

	"metric-agent/models"
)

// parserSystemPrompt instructs the model to extract and canonicalize company,
// metric, and time from the question, restricted to the supplied catalogs,
// and to ask one minimal Chinese clarification question when a slot cannot be
// uniquely determined.
const parserSystemPrompt = "你是财务语义解析器。你的任务是从用户问题中抽取并规范化 公司、指标、时间，并在不确定时给出单句最小追问。\n" +
	"【输入】\n" +
	"- now: 当前日期(YYYY-MM-DD)\n" +
	"- companies: [{display_name, aliases}] 只允许从这里选公司\n" +
	"- metrics: [{canonical_name, aliases}] 只允许从这里选指标\n" +
	"- hint_latest_any: 数据中最新的 {year, quarter}（可为空）\n" +
	"- question: 用户原始问题\n" +
	"【解析规则】\n" +
	"1) company：从 question 中定位疑似公司片段；只能映射到 companies[].display_name（命中 aliases 需转成对应 display_name）。\n" +
	"2) metric：从 question 中定位指标片段；只能映射到 metrics[].canonical_name（命中 aliases 需转成 canonical_name）。\n" +
	"   规则：除非问题里有【增长率/同比/环比/增速】等字样，否则禁止选择带这些字样的指标。\n" +
	"3) 时间：输出 {year:int, quarter:1-4}。相对时间必须落到具体年季，优先级：公司+指标→公司→overall→按 now 推算并回退。\n" +
	"4) 任一项无法唯一确定：need_clarification=true，ask 用中文单句最小追问。\n" +
	"【输出】严格 JSON：{\"company\":\"公司规范名\",\"metric\":\"指标规范名\",\"year\":int,\"quarter\":1|2|3|4,\"need_clarification\":bool,\"ask\":\"...或空串\"}\n"

var (
	codeFenceRE = regexp.MustCompile("```json|```")
	jsonBlockRE = regexp.MustCompile(`\{[\s\S]*\}`)
)

// marshalPayload serializes the catalog payload for the user turn.
func marshalPayload(payload CatalogPayload) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal parser payload: %w", err)
	}
	return string(b), nil
}

// decodeGuess extracts a ParsedGuess from raw model output. Models wrap JSON
// in code fences, prepend prose, and emit almost-JSON often enough that we
// strip fences, fall back to repair, and finally grab the outermost brace
// block before giving up.
func decodeGuess(text string) (*models.ParsedGuess, error) {
	content := strings.TrimSpace(codeFenceRE.ReplaceAllString(text, ""))
	if content == "" {
		return nil, fmt.Errorf("empty model output")
	}

	var raw struct {
		Company           string         `json:"company"`
		Metric            string         `json:"metric"`
		Year              int            `json:"year"`
		Quarter           models.Quarter `json:"quarter"`
		NeedClarification bool           `json:"need_clarification"`
		Ask               string         `json:"ask"`
	}

	try := func(s string) bool {
		return json.Unmarshal([]byte(s), &raw) == nil
	}

	ok := try(content)
	if !ok {
		if repaired, err := jsonrepair.RepairJSON(content); err == nil {
			ok = try(repaired)
		}
	}
	if !ok {
		if block := jsonBlockRE.FindString(content); block != "" {
			ok = try(block)
		}
	}
	if !ok {
		return nil, fmt.Errorf("unparseable model output: %q", truncate(content, 200))
	}

	guess := &models.ParsedGuess{
		Company:           strings.TrimSpace(raw.Company),
		Metric:            strings.TrimSpace(raw.Metric),
		Year:              raw.Year,
		NeedClarification: raw.NeedClarification,
		Ask:               strings.TrimSpace(raw.Ask),
	}
	if raw.Quarter.Valid() {
		guess.Quarter = int(raw.Quarter)
	}
	return guess, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
