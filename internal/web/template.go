package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/irrigation-controller/internal/logic"
	"github.com/sweeney/irrigation-controller/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"clock": func(t int64) string {
		if t == 0 {
			return ""
		}
		if t == logic.RunForever {
			return "until stopped"
		}
		return time.Unix(t, 0).Local().Format("15:04:05")
	},
	"nextStart": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.Local().Format("Mon 02 Jan 15:04")
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="10">
<title>Irrigation Controller</title>
<style>
body { font-family: monospace; max-width: 720px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.running { color: green; font-weight: bold; }
.queued { color: orange; }
.idle { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Irrigation Controller</h1>

<h2>Controller</h2>
<table>
<tr><th>Enabled</th><td>{{if .Controller.Status.Enabled}}yes{{else}}no{{end}}</td></tr>
<tr><th>Program</th><td>{{if .Controller.Status.ProgramBusy}}running{{else}}idle{{end}}</td></tr>
<tr><th>Rain sensor</th><td>{{if not .RainBaselined}}settling{{else if .Controller.Status.RainSensed}}wet{{else}}dry{{end}}</td></tr>
<tr><th>Rain delay</th><td>{{if .Controller.Status.RainDelayed}}until {{clock .Controller.Status.RainDelayUntil}}{{else}}none{{end}}</td></tr>
</table>

<h2>Stations</h2>
<table>
<tr><th>#</th><th>Name</th><th>State</th><th>Start</th><th>Stop</th><th>Program</th></tr>
{{range .Stations}}<tr><td>{{.ID}}{{if .Master}} (master){{end}}</td><td>{{.Name}}</td><td class="{{.State}}">{{.State}}</td><td>{{clock .Entry.Start}}</td><td>{{clock .Entry.Stop}}</td><td>{{if not .Entry.Program.IsNone}}{{.Entry.Program}}{{end}}</td></tr>
{{end}}</table>

<h2>Programs</h2>
<table>
<tr><th>#</th><th>Name</th><th>Enabled</th><th>Next start</th></tr>
{{range .Programs}}<tr><td>{{.ID}}</td><td>{{.Name}}</td><td>{{if .Enabled}}yes{{else}}no{{end}}</td><td>{{if .Enabled}}{{nextStart .NextStart}}{{end}}</td></tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Gateway probes failed</th><td>{{.Controller.Status.NetworkFails}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Boards</th><td>{{.Config.Boards}}</td></tr>
<tr><th>Mode</th><td>{{if .Config.Sequential}}sequential{{else}}parallel{{end}}</td></tr>
<tr><th>Water level</th><td>{{.Config.WaterPercentage}}%</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> <a href="/log.json">Run log</a> <a href="/metrics">Metrics</a></p>
</body>
</html>
`

type stationRow struct {
	ID     logic.StationID
	Name   string
	State  string
	Master bool
	Entry  logic.ScheduleEntry
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	rows := make([]stationRow, 0, len(snap.Controller.Stations))
	for i, st := range snap.Controller.Stations {
		row := stationRow{
			ID:     st.ID,
			Name:   st.Name,
			State:  status.StationState(snap.Controller, i),
			Master: st.ID == snap.Controller.Status.Master,
		}
		if i < len(snap.Controller.Entries) {
			row.Entry = snap.Controller.Entries[i]
		}
		rows = append(rows, row)
	}

	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime   time.Duration
		Stations []stationRow
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Stations: rows,
	}
	indexTmpl.Execute(w, data)
}
