package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"time"

	"github.com/sweeney/cadence-clicker/internal/keycode"
	"github.com/sweeney/cadence-clicker/internal/status"
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
	"key": func(c keycode.Code) string {
		return keycode.DisplayName(c)
	},
	"orUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Cadence Clicker</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.paused { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Cadence Clicker</h1>

<h2>Engine</h2>
<table>
<tr><th>Mode</th><td>{{orUnknown (printf "%s" .Engine.Mode)}}</td></tr>
<tr><th>Paused</th><td class="{{if .Engine.Paused}}paused{{else}}off{{end}}">{{if .Engine.Paused}}yes{{else}}no{{end}}</td></tr>
<tr><th>Presses</th><td>{{.Engine.Presses}}</td></tr>
<tr><th>Last press</th><td>{{if .Engine.LastPress.IsZero}}never{{else}}{{.Engine.LastPress.UTC.Format "2006-01-02T15:04:05.000Z"}}{{end}}</td></tr>
</table>

<h2>Channels</h2>
<table>
<tr><th></th><th>Primary</th><th>Secondary</th></tr>
<tr><td>State</td><td class="{{if .Engine.Primary.Active}}on{{else}}off{{end}}">{{if .Engine.Primary.Active}}ON{{else}}OFF{{end}}</td><td class="{{if .Engine.Secondary.Active}}on{{else}}off{{end}}">{{if .Engine.Secondary.Active}}ON{{else}}OFF{{end}}</td></tr>
<tr><td>Mood</td><td>{{orUnknown (printf "%s" .Engine.Primary.Mood)}}</td><td>{{orUnknown (printf "%s" .Engine.Secondary.Mood)}}</td></tr>
<tr><td>Rate</td><td>{{printf "%.1f" .Engine.Primary.BaseRate}} cps</td><td>{{printf "%.1f" .Engine.Secondary.BaseRate}} cps</td></tr>
<tr><td>Target</td><td>{{key .Engine.Primary.Target}}</td><td>{{key .Engine.Secondary.Target}}</td></tr>
<tr><td>Presses</td><td>{{.Engine.Primary.Presses}}</td><td>{{.Engine.Secondary.Presses}}</td></tr>
</table>

<h2>Triggers</h2>
<table>
<tr><th>Style</th><td>{{orUnknown (printf "%s" .Listener.Style)}}</td></tr>
<tr><th>Primary</th><td>{{key .Listener.Bindings.Primary}}</td></tr>
<tr><th>Secondary</th><td>{{key .Listener.Bindings.Secondary}}</td></tr>
<tr><th>Hide</th><td>{{key .Listener.Bindings.Hide}}</td></tr>
{{if .Listener.Rebinding}}<tr><th>Rebinding</th><td class="paused">{{.Listener.Rebinding}}</td></tr>{{end}}
<tr><th>Devices</th><td>{{range $i, $d := .Listener.Devices}}{{if $i}}<br>{{end}}{{$d}}{{else}}none{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Topic</th><td>{{.Config.Topic}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
<tr><th>Device</th><td>{{.Config.DeviceName}}</td></tr>
<tr><th>Settings</th><td>{{.Config.SettingsPath}}</td></tr>
{{if .Config.Pedal}}<tr><th>Pedal</th><td>{{.Config.Pedal}}</td></tr>{{end}}
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("http: render: %v", err)
	}
}
