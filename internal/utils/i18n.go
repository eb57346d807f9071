package utils

// Minimal server-side i18n for the response envelope message.
// Detail text inside data stays in English; clients localize their own UI.

var translations = map[string]map[string]string{
	"en": {
		"health.ok":                  "ok",
		"ok":                         "ok",
		"created":                    "created",
		"deleted":                    "deleted",
		"auth.registered":            "registered",
		"auth.logged_in":             "logged in",
		"answer.submitted":           "answer submitted",
		"error.invalid":              "invalid request",
		"error.unauthorized":         "not signed in or session expired",
		"error.forbidden":            "permission denied",
		"error.not_found":            "not found",
		"error.conflict":             "conflict with current state",
		"error.duplicate_submission": "questionnaire already answered",
		"error.reference_not_found":  "answer references missing questions or options",
		"error.partial_batch":        "answer could not be stored",
		"error.internal":             "internal server error",
		"error.method_not_allowed":   "method not allowed",
		"error.route_not_found":      "route not found",
	},
	"zh": {
		"health.ok":                  "好的",
		"ok":                         "成功",
		"created":                    "已创建",
		"deleted":                    "已删除",
		"auth.registered":            "注册成功",
		"auth.logged_in":             "登录成功",
		"answer.submitted":           "答卷已提交",
		"error.invalid":              "请求参数无效",
		"error.unauthorized":         "未登录或登录已过期",
		"error.forbidden":            "权限不足",
		"error.not_found":            "资源不存在",
		"error.conflict":             "与当前状态冲突",
		"error.duplicate_submission": "该问卷已作答",
		"error.reference_not_found":  "答卷引用的题目或选项不存在",
		"error.partial_batch":        "答卷保存失败",
		"error.internal":             "服务器内部错误",
		"error.method_not_allowed":   "请求方法不允许",
		"error.route_not_found":      "接口不存在",
	},
}

// T returns the translated string for key in locale; falls back to English.
func T(locale, key string) string {
	if m, ok := translations[locale]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if m, ok := translations["en"]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return key
}
