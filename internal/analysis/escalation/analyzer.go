package escalation

import (
	"strings"
	"unicode"
)

// Reason 表示触发人工客服的关键词类别。
type Reason string

const (
	None     Reason = ""
	Human    Reason = "human"
	Agent    Reason = "agent"
	Support  Reason = "support"
	WhatsApp Reason = "whatsapp"
)

// Decision 给出是否需要转人工以及命中的关键词。
type Decision struct {
	Requested bool
	Reason    Reason
	Keyword   string
	Score     int
}

// 只匹配"请求"式短语（动词加对象），单独出现的 human、agent、whatsapp 不算。
var (
	contactVerbs = []string{
		"talk to", "talk with", "speak to", "speak with", "chat with",
		"connect me to", "connect me with", "transfer me to", "put me through to",
	}
	wantVerbs = []string{"i want", "i need", "get me", "give me"}
)

// 对象按类别划分；英文与罗马乌尔都语短语统一使用小写。
var (
	humanObjects = []string{"a human", "human", "a person", "a real person", "real person", "a live person", "someone", "somebody"}
	agentObjects = []string{
		"an agent", "agent", "a human agent", "human agent", "a live agent", "live agent",
		"a representative", "representative", "a rep", "an operator", "operator",
	}
	supportObjects = []string{
		"support", "customer support", "customer service", "customer care",
		"support team", "the support team", "your support team", "a support agent",
	}
)

var keywordBuckets = map[Reason][]string{
	Human: join(
		combine(contactVerbs, humanObjects),
		combine(wantVerbs, []string{"a human", "a real person", "a live person"}),
		[]string{"insaan se baat", "insan se baat", "banday se baat", "bande se baat"},
	),
	Agent: join(
		combine(contactVerbs, agentObjects),
		combine(wantVerbs, []string{"an agent", "a human agent", "a live agent", "a representative"}),
		[]string{"agent se baat", "live chat with"},
	),
	Support: join(
		combine(contactVerbs, supportObjects),
		[]string{
			"contact support", "contact customer support", "contact customer service",
			"call support", "call customer support", "support se baat",
		},
	),
	WhatsApp: {
		"contact you on whatsapp", "reach you on whatsapp", "message you on whatsapp",
		"chat on whatsapp", "talk on whatsapp", "whatsapp support", "whatsapp se baat",
	},
}

func combine(verbs, objects []string) []string {
	out := make([]string, 0, len(verbs)*len(objects))
	for _, verb := range verbs {
		for _, object := range objects {
			out = append(out, verb+" "+object)
		}
	}
	return out
}

func join(groups ...[]string) []string {
	var out []string
	for _, group := range groups {
		out = append(out, group...)
	}
	return out
}

// 固定优先级，保证同分时结果稳定。
var reasonOrder = []Reason{Human, Agent, Support, WhatsApp}

// Detect 判断用户话语是否在请求人工客服。
func Detect(utterance string) Decision {
	normalized := normalize(utterance)
	if normalized == "" {
		return Decision{}
	}

	best := Decision{}
	for _, reason := range reasonOrder {
		score := 0
		firstHit := ""
		for _, keyword := range keywordBuckets[reason] {
			if containsPhrase(normalized, keyword) {
				score += 3
				if firstHit == "" {
					firstHit = keyword
				}
			}
		}
		if score > best.Score {
			best = Decision{Requested: true, Reason: reason, Keyword: firstHit, Score: score}
		}
	}
	return best
}

// normalize 转为小写并把标点折叠为空格，便于按词匹配。
func normalize(text string) string {
	var builder strings.Builder
	builder.Grow(len(text) + 2)
	builder.WriteByte(' ')
	lastSpace := true
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			builder.WriteByte(' ')
			lastSpace = true
		}
	}
	if !lastSpace {
		builder.WriteByte(' ')
	}
	out := builder.String()
	if strings.TrimSpace(out) == "" {
		return ""
	}
	return out
}

// containsPhrase 要求关键词两侧是词边界，避免 "humanity" 命中 "human"。
func containsPhrase(normalized, phrase string) bool {
	return strings.Contains(normalized, " "+phrase+" ")
}
