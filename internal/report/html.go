package report

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/xaenox/chatlens/internal/models"
)

type htmlData struct {
	Period     string
	Stats      models.Statistics
	PeakHours  string
	Topics     []models.Topic
	Titles     []models.UserTitle
	Quotes     []models.Quote
	Chart      []chartBar
	NoData     bool
	Truncated  bool
	Degraded   []string
	TokenTotal int
}

type chartBar struct {
	Hour    int
	Count   int
	Percent int
}

// RenderHTML fills the visual report template. The same markup feeds both
// the image and the PDF path.
func RenderHTML(result *models.AnalysisResult) (string, error) {
	if result == nil {
		return "", fmt.Errorf("no analysis result")
	}

	data := htmlData{
		Period: fmt.Sprintf("%s - %s",
			result.PeriodStart.Format("2006-01-02 15:04"),
			result.PeriodEnd.Format("2006-01-02 15:04")),
		Stats:      result.Statistics,
		PeakHours:  formatPeakHours(result.Statistics.PeakHours),
		Topics:     result.Topics,
		Titles:     result.UserTitles,
		Quotes:     result.Quotes,
		NoData:     result.Statistics.MessageCount == 0,
		Truncated:  result.Truncated,
		Degraded:   result.Degraded,
		TokenTotal: result.TokenUsage.TotalTokens,
	}

	max := 0
	for _, count := range result.Statistics.HourlyDistribution {
		if count > max {
			max = count
		}
	}
	for hour, count := range result.Statistics.HourlyDistribution {
		percent := 0
		if max > 0 {
			percent = count * 100 / max
		}
		data.Chart = append(data.Chart, chartBar{Hour: hour, Count: count, Percent: percent})
	}

	var b strings.Builder
	if err := reportTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to execute report template: %w", err)
	}
	return b.String(), nil
}

// initials renders the avatar placeholder for members without one.
func initials(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "?"
	}
	return string([]rune(name)[0])
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"initials": initials,
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  body { font-family: "Helvetica Neue", Arial, sans-serif; background: #f5f6fa; margin: 0; padding: 24px; color: #2f3542; }
  .card { background: #fff; border-radius: 12px; padding: 20px; margin-bottom: 16px; box-shadow: 0 1px 4px rgba(0,0,0,.08); }
  h1 { font-size: 22px; margin: 0 0 4px; }
  h2 { font-size: 16px; margin: 0 0 12px; color: #3742fa; }
  .period { color: #747d8c; font-size: 13px; margin-bottom: 20px; }
  .stat-grid { display: flex; gap: 12px; }
  .stat { flex: 1; text-align: center; }
  .stat .value { font-size: 20px; font-weight: bold; }
  .stat .label { font-size: 12px; color: #747d8c; }
  .topic { margin-bottom: 14px; }
  .topic .title { font-weight: bold; }
  .topic .who { font-size: 12px; color: #747d8c; }
  .member { display: flex; align-items: center; gap: 10px; margin-bottom: 12px; }
  .avatar, .avatar-ph { width: 40px; height: 40px; border-radius: 50%; }
  .avatar-ph { background: #70a1ff; color: #fff; display: flex; align-items: center; justify-content: center; font-weight: bold; }
  .quote { border-left: 3px solid #70a1ff; padding-left: 10px; margin-bottom: 12px; }
  .quote .meta { font-size: 12px; color: #747d8c; }
  .chart { display: flex; align-items: flex-end; gap: 2px; height: 80px; }
  .bar { flex: 1; background: #70a1ff; border-radius: 2px 2px 0 0; min-height: 1px; }
  .hours { display: flex; gap: 2px; font-size: 9px; color: #747d8c; }
  .hours span { flex: 1; text-align: center; }
  .notice { text-align: center; color: #747d8c; padding: 30px 0; }
  .footnote { font-size: 11px; color: #a4b0be; }
</style>
</head>
<body>
<h1>Group Chat Analysis Report</h1>
<div class="period">{{.Period}}</div>
{{if .NoData}}
<div class="card"><div class="notice">No messages in the selected period - nothing to analyze.</div></div>
{{else}}
<div class="card">
  <h2>Statistics</h2>
  <div class="stat-grid">
    <div class="stat"><div class="value">{{.Stats.MessageCount}}</div><div class="label">Messages</div></div>
    <div class="stat"><div class="value">{{.Stats.ParticipantCount}}</div><div class="label">Participants</div></div>
    <div class="stat"><div class="value">{{.Stats.CharCount}}</div><div class="label">Characters</div></div>
    <div class="stat"><div class="value">{{.Stats.EmojiStats.TotalCount}}</div><div class="label">Emoji</div></div>
  </div>
</div>
<div class="card">
  <h2>Activity by Hour</h2>
  <div class="chart">{{range .Chart}}<div class="bar" style="height: {{.Percent}}%"></div>{{end}}</div>
  <div class="hours">{{range .Chart}}<span>{{.Hour}}</span>{{end}}</div>
  <div class="footnote">Most active: {{.PeakHours}}</div>
</div>
<div class="card">
  <h2>Hot Topics</h2>
  {{range $i, $t := .Topics}}
  <div class="topic">
    <div class="title">{{$t.Title}}</div>
    <div class="who">Participants: {{range $j, $p := $t.Participants}}{{if $j}}, {{end}}{{$p}}{{end}}</div>
    <div>{{$t.Description}}</div>
  </div>
  {{else}}<div class="notice">No topic data.</div>{{end}}
</div>
<div class="card">
  <h2>Member Titles</h2>
  {{range .Titles}}
  <div class="member">
    {{if .AvatarURL}}<img class="avatar" src="{{.AvatarURL}}" alt="">{{else}}<div class="avatar-ph">{{initials .Name}}</div>{{end}}
    <div>
      <div><b>{{.Name}}</b> - {{.Title}}{{if .PersonalityTag}} ({{.PersonalityTag}}){{end}}</div>
      <div class="footnote">{{.Reason}}</div>
    </div>
  </div>
  {{else}}<div class="notice">No title data.</div>{{end}}
</div>
<div class="card">
  <h2>Quotes of the Day</h2>
  {{range .Quotes}}
  <div class="quote">
    <div>"{{.Content}}"</div>
    <div class="meta">- {{.SenderName}} · {{.Reason}}</div>
  </div>
  {{else}}<div class="notice">No quote data.</div>{{end}}
</div>
{{end}}
<div class="footnote">
  Token usage: {{.TokenTotal}}
  {{if .Truncated}} · analysis hit the time limit, partial results{{end}}
  {{if .Degraded}} · degraded sections: {{range $i, $d := .Degraded}}{{if $i}}, {{end}}{{$d}}{{end}}{{end}}
</div>
</body>
</html>`))
