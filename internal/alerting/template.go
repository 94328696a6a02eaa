package alerting

import (
	"fmt"
	"strings"
	"time"
)

// DefaultMessageTemplate is used when the task has no custom template.
const DefaultMessageTemplate = "{task_name} detected {class_name} with {confidence}% confidence on {video_name} at {time}"

// TemplateContext carries the values substituted into an alert message.
type TemplateContext struct {
	TaskName   string
	ClassName  string
	Confidence float64
	VideoName  string
	Time       time.Time
}

// RenderMessage expands the placeholder template for one detection.
// Supported placeholders: {task_name}, {time}, {class_name},
// {confidence}, {video_name}.
func RenderMessage(template string, ctx TemplateContext) string {
	if strings.TrimSpace(template) == "" {
		template = DefaultMessageTemplate
	}
	r := strings.NewReplacer(
		"{task_name}", ctx.TaskName,
		"{time}", ctx.Time.Format("2006-01-02 15:04:05"),
		"{class_name}", ctx.ClassName,
		"{confidence}", fmt.Sprintf("%.2f", ctx.Confidence*100),
		"{video_name}", ctx.VideoName,
	)
	return r.Replace(template)
}

// Title builds the standard alert title for a detection class.
func Title(class, taskName string) string {
	return fmt.Sprintf("%s detection alert - %s", class, taskName)
}
