package services

import "strings"

// escalationPhrases are matched case-sensitively against the assistant reply.
var escalationPhrases = []string{
	"hỏi giáo viên",
	"không chắc chắn",
	"không thể trả lời",
}

// TeacherSuggestion is appended to replies that hint at asking a teacher.
const TeacherSuggestion = "\n\n💡 **Gợi ý:** Nếu bạn cần câu trả lời chi tiết hơn, hãy gửi câu hỏi trực tiếp cho giáo viên!"

// NeedsTeacher reports whether reply contains any escalation phrase.
func NeedsTeacher(reply string) bool {
	for _, p := range escalationPhrases {
		if strings.Contains(reply, p) {
			return true
		}
	}
	return false
}

// WithTeacherSuggestion appends TeacherSuggestion when NeedsTeacher(reply),
// otherwise returns reply unchanged.
func WithTeacherSuggestion(reply string) (string, bool) {
	if !NeedsTeacher(reply) {
		return reply, false
	}
	return reply + TeacherSuggestion, true
}
