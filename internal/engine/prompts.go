package engine

import (
	"fmt"
	"strings"

	"github.com/glowdesk/engage/internal/models"
)

// historyWindow caps how many history lines go into a generation prompt.
const historyWindow = 50

// actionDirectives tell the generation model what each candidate action is
// trying to accomplish this turn.
var actionDirectives = map[models.CandidateAction]string{
	models.ActionGreeting:        "热情自然地打招呼，让客户感到被欢迎。",
	models.ActionRapportBuilding: "闲聊拉近距离，不谈项目不谈销售。",
	models.ActionNeedsAnalysis:   "自然地了解客户的护理需求和关注点。",
	models.ActionValueDisplay:    "结合客户关心的点展示项目的实际效果。",
	models.ActionStressResponse:  "安抚客户的顾虑和压力，语气温和。",
	models.ActionPainPointTest:   "试探客户是否存在相关的皮肤困扰。",
	models.ActionValuePitch:      "针对客户痛点给出项目方案和价值说明。",
	models.ActionActiveClose:     "主动邀约客户确定到店时间。",
	models.ActionReverseProbe:    "委婉地反向试探客户的真实意向。",
}

const generationSystemPrompt = "你是一家美容店的老板娘，正在微信上和客户聊天。" +
	"回复要像真人发消息一样简短自然，一般不超过两句话，不要用书面语，不要列条目。"

// FormatHistory renders recent conversation history for prompt inclusion,
// newest last.
func FormatHistory(history []models.Message, window int) string {
	if len(history) > window {
		history = history[len(history)-window:]
	}
	var sb strings.Builder
	for _, m := range history {
		role := "用户"
		if m.Role == models.RoleAssistant {
			role = "AI"
		}
		sb.WriteString(role)
		sb.WriteString("：")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

// buildGenerationPrompt assembles the user prompt for one candidate action.
func buildGenerationPrompt(tc TurnContext, action models.CandidateAction) (system, user string) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "当前对话阶段：%s\n", tc.Stage)
	fmt.Fprintf(&sb, "本条回复的策略：%s\n", actionDirectives[action])

	// Only social small talk cares what time of day it is.
	if action == models.ActionGreeting || action == models.ActionRapportBuilding {
		fmt.Fprintf(&sb, "现在是%s。\n", TimeOfDayHint(tc.Now))
	}

	if h := FormatHistory(tc.History, historyWindow); h != "" {
		sb.WriteString("对话记录（按时间顺序）：\n")
		sb.WriteString(h)
	}
	sb.WriteString("请直接给出你要发给客户的下一条消息。")
	return generationSystemPrompt, sb.String()
}

const evaluationSystemPrompt = "你是销售对话质量评估员。根据对话阶段和策略评估候选回复，" +
	`只输出JSON：{"score": 0到1之间的分数, "reasoning": "一句话理由"}`

// buildEvaluationPrompt assembles the prompt scoring one generated reply.
func buildEvaluationPrompt(tc TurnContext, action models.CandidateAction, text string) (system, user string) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "对话阶段：%s\n策略：%s\n候选回复：%s\n", tc.Stage, action, text)
	fmt.Fprintf(&sb, "客户信任度：%.2f，舒适度：%.2f，意向等级：%s\n", tc.Emotion.Trust, tc.Emotion.Comfort, tc.IntentLevel)
	sb.WriteString("请评分。")
	return evaluationSystemPrompt, sb.String()
}

// Assessment prompts: emotional state, intent classification and invitation
// status run as three independent calls per turn.

const emotionSystemPrompt = "你是客户情绪分析师。根据对话记录评估客户当前的情感状态和意向等级，" +
	`只输出JSON：{"emotional_state":{"security_level":0-1,"familiarity_level":0-1,` +
	`"comfort_level":0-1,"intimacy_level":0-1,"gain_level":0-1,"recognition_level":0-1,` +
	`"trust_level":0-1},"customer_intent_level":"low/medium/high/fake_high"}`

const intentSystemPrompt = "你是客户意图分析师。判断客户最新消息的意图，" +
	`只输出JSON：{"intent_type":"appointment_request/time_confirmation/price_inquiry/` +
	`concern_raised/general_chat/ready_to_book/info_providing/info_seeking",` +
	`"confidence":0-1,"extracted_info":{},"requires_action":[]}`

const invitationSystemPrompt = "你是邀约状态判断员。判断客户是否已确认到店邀约，" +
	`只输出JSON：{"invitation_status":0或1,"invitation_time":"时间或null","invitation_project":"项目或null"}`

func buildAssessmentUser(history []models.Message) string {
	var sb strings.Builder
	sb.WriteString("对话记录（按时间顺序）：\n")
	sb.WriteString(FormatHistory(history, historyWindow))
	return sb.String()
}
