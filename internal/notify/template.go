package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/shaiso/maa-api/internal/domain"
)

//go:embed templates/pipeline.html
var templateFS embed.FS

var pipelineTemplate = template.Must(
	template.New("pipeline.html").
		Funcs(template.FuncMap{"imageSrc": imageSrc}).
		ParseFS(templateFS, "templates/pipeline.html"),
)

// imageSrc превращает JPEG в base64 в data URI.
func imageSrc(b64 string) template.URL {
	return template.URL("data:image/jpeg;base64," + b64)
}

type pipelineData struct {
	Status domain.PipelineStatus
	Date   time.Time
	Tasks  []domain.TaskView
	Logs   []domain.LogEntry
}

// RenderPipeline рендерит HTML-сводку по pipeline.
func RenderPipeline(view domain.PipelineView, now time.Time) (string, error) {
	var buf bytes.Buffer
	err := pipelineTemplate.Execute(&buf, pipelineData{
		Status: view.Status,
		Date:   now,
		Tasks:  view.Tasks,
		Logs:   view.Logs,
	})
	if err != nil {
		return "", fmt.Errorf("render pipeline template: %w", err)
	}
	return buf.String(), nil
}
