package web

import (
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"

	"github.com/ecoledger/carbon-dashboard/internal/carbon"
	"github.com/ecoledger/carbon-dashboard/internal/consumption"
	"github.com/ecoledger/carbon-dashboard/internal/dashboard"
	"github.com/ecoledger/carbon-dashboard/internal/publish"
)

type statusPage struct {
	Uptime     time.Duration
	Factors    []carbon.EmissionFactor
	Activities []carbon.ActivityType
	Summary    consumption.Summary
	Schedules  int
	Dashboards []string
	MQTT       string
}

var statusTmpl = template.Must(template.New("status").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm", days, h, m)
		}
		return fmt.Sprintf("%dh %dm %ds", h, m, int(d.Seconds())%60)
	},
	"kg": carbon.FormatKg,
}).Parse(statusHTML))

const statusHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Carbon dashboard</title>
<style>
body { font-family: sans-serif; margin: 2em; color: #222; }
table { border-collapse: collapse; margin-bottom: 1.5em; }
td, th { border: 1px solid #ccc; padding: 4px 10px; text-align: left; }
th { background: #f3f3f3; }
</style>
</head>
<body>
<h1>Carbon dashboard</h1>
<p>Up {{uptime .Uptime}}. MQTT: {{.MQTT}}. Report schedules: {{.Schedules}}.</p>

<h2>Recorded emissions</h2>
<table>
<tr><th>Records</th><td>{{.Summary.Records}}</td></tr>
<tr><th>Scope 1</th><td>{{kg .Summary.Scopes.Scope1}}</td></tr>
<tr><th>Scope 2</th><td>{{kg .Summary.Scopes.Scope2}}</td></tr>
<tr><th>Scope 3</th><td>{{kg .Summary.Scopes.Scope3}}</td></tr>
<tr><th>Total</th><td>{{kg .Summary.Scopes.Total}}</td></tr>
</table>

<h2>Emission factors</h2>
<table>
<tr><th>Category</th><th>Unit</th><th>kg CO2e per unit</th></tr>
{{range .Factors}}<tr><td>{{.Category}}</td><td>{{.Unit}}</td><td>{{.Factor}}</td></tr>
{{end}}</table>

<h2>Activity types</h2>
<table>
<tr><th>Activity</th><th>Unit</th><th>kg CO2e per unit</th><th>Scope</th></tr>
{{range .Activities}}<tr><td>{{.Name}}</td><td>{{.Unit}}</td><td>{{.Factor}}</td><td>{{.Scope}}</td></tr>
{{end}}</table>

<h2>Dashboards</h2>
<ul>
{{range .Dashboards}}<li><a href="/api/dashboards/{{.}}">{{.}}</a></li>
{{end}}</ul>
</body>
</html>
`

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page := statusPage{
		Uptime:     s.now().Sub(s.started),
		Factors:    s.records.Table().Factors(),
		Activities: s.records.Table().Activities(),
		Dashboards: dashboard.Names(),
		MQTT:       "disabled",
	}
	if cs, ok := s.publisher.(publish.ConnectionStatus); ok {
		page.MQTT = "disconnected"
		if cs.IsConnected() {
			page.MQTT = "connected"
		}
	}

	summary, err := s.records.Summary(r.Context(), consumption.Filter{})
	if err != nil {
		writeError(w, r, err)
		return
	}
	page.Summary = summary
	if schedules, err := s.schedules.List(r.Context()); err == nil {
		page.Schedules = len(schedules)
	} else {
		hlog.FromRequest(r).Warn().Err(err).Msg("failed to list schedules")
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := statusTmpl.Execute(w, page); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to render status page")
	}
}
