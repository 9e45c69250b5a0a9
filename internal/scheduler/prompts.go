package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/glowdesk/engage/internal/models"
)

// History windows for the two decision prompts.
const (
	triggeredHistoryWindow   = 50
	untriggeredHistoryWindow = 10
)

const decisionSystemPrompt = "你是美容店的老板，负责决定下一次主动联系客户的事件。" +
	`只输出JSON：{"event_type":"appointment_reminder/pending_activation/customer_followup",` +
	`"event_time":"ISO 8601时间","appointment_time":"客户约定到店时间或null"}`

// buildDecisionPrompt renders the delegated scheduling prompt. The advisory
// ruleset biases toward appointment_reminder > customer_followup >
// pending_activation; connection_attempt is excluded because the hard
// override owns it.
func buildDecisionPrompt(mode models.SchedulerMode, sc models.SchedulingContext, now time.Time) (system, user string) {
	window := untriggeredHistoryWindow
	intro := "用户刚刚回复了消息"
	if mode == models.ModeTriggered {
		window = triggeredHistoryWindow
		intro = fmt.Sprintf("上次判断的%s事件已经触发了一次", sc.LastEventType)
	}

	replyDays, replyHours, replyMinutes := elapsedParts(sc.UserLastReplyTime, now)
	sendDays, sendHours, sendMinutes := elapsedParts(sc.LastActiveSendTime, now)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s，请参考以下关键信息：\n", intro)
	fmt.Fprintf(&sb, "- 对话内容（按时间顺序）：\n%s", formatHistory(sc.History, window))
	fmt.Fprintf(&sb, "- 之前约好的用户预约到店时间：%s\n", sc.AppointmentTime)
	fmt.Fprintf(&sb, "- 当前时间：%s\n", now.Format(time.RFC3339))
	fmt.Fprintf(&sb, "- 上次事件类型：%s，上次事件时间：%s\n", sc.LastEventType, sc.LastEventTime)
	fmt.Fprintf(&sb, "- 用户最后回复时间：%s，已%d天%d小时%d分钟未回复\n", sc.UserLastReplyTime, replyDays, replyHours, replyMinutes)
	fmt.Fprintf(&sb, "- 上次主动发送时间：%s，距今%d天%d小时%d分钟\n", sc.LastActiveSendTime, sendDays, sendHours, sendMinutes)
	fmt.Fprintf(&sb, "- 用户项目完成信息：%s\n", sc.TreatmentCompletionInfo)
	sb.WriteString(`
事件类型与优先级：邀约提醒 appointment_reminder > 客户回访 customer_followup > 待唤醒 pending_activation。
- appointment_reminder：对话中有明确预约到店时间时选择；event_time 为当前时间3小时后且不晚于预约时间，预约不足3小时则为当前时间后10-30分钟。
- customer_followup：有项目完成信息或客户最近到店做过项目时选择；event_time 为完成后15-30天，9:00-18:00之间。
- pending_activation：以上都不满足时的默认选择；根据未回复时长推算 event_time（2小时内→3-18小时后；超过1天→1-2天后；超过7天→3-5天后；超过30天→10-20天后；超过60天→30-60天后），9:00-18:00之间。
不要选择 connection_attempt，不要过度依赖上次事件类型。
`)
	return decisionSystemPrompt, sb.String()
}

func formatHistory(history []models.Message, window int) string {
	if len(history) > window {
		history = history[len(history)-window:]
	}
	var sb strings.Builder
	for _, m := range history {
		role := "用户"
		if m.Role == models.RoleAssistant {
			role = "助手"
		}
		fmt.Fprintf(&sb, "%s：%s\n", role, m.Content)
	}
	return sb.String()
}

func elapsedParts(value string, now time.Time) (days, hours, minutes int) {
	t, err := ParseTime(value)
	if err != nil {
		return 0, 0, 0
	}
	seconds := int(now.Sub(t).Seconds())
	if seconds < 0 {
		return 0, 0, 0
	}
	return seconds / (24 * 3600), seconds / 3600, (seconds % 3600) / 60
}

// Per-event message prompts for the proactive text itself.
var eventMessagePrompts = map[models.EventType]string{
	models.EventOpeningGreeting:     "给一位刚加上微信的新客户发第一条开场消息，自然友好，不要推销。",
	models.EventCustomerFollowup:    "客户之前在店里做过项目，发一条回访消息，关心效果和感受。",
	models.EventAppointmentReminder: "客户约好了到店时间，发一条提醒确认的消息。",
	models.EventPendingActivation:   "客户好久没有互动了，发一条重新唤起联系的消息，轻松不刻意。",
	models.EventConnectionAttempt:   "客户还从未回复过，发一条简短的破冰消息，降低对方的回复压力。",
}

const eventMessageSystemPrompt = "你是美容店的老板娘，在微信上主动给客户发消息。" +
	"消息要像真人随手发的，20到80个字，不要列条目，不要过度热情。"

// BuildEventMessagePrompt renders the prompt that writes the proactive
// message for a fired event. Opening greetings ignore history.
func BuildEventMessagePrompt(eventType models.EventType, history []models.Message) (system, user string) {
	var sb strings.Builder
	sb.WriteString(eventMessagePrompts[eventType])
	sb.WriteString("\n")
	if eventType != models.EventOpeningGreeting {
		if h := formatHistory(history, triggeredHistoryWindow); h != "" {
			sb.WriteString("对话记录（按时间顺序）：\n")
			sb.WriteString(h)
		}
	}
	sb.WriteString("请直接给出要发送的消息。")
	return eventMessageSystemPrompt, sb.String()
}
