package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/flow-sensor/internal/status"
	"github.com/sweeney/flow-sensor/internal/units"
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
	"round": func(v float64, places int32) string {
		return units.MustRound(v, places).String()
	},
	"label": func(u units.RateUnit, vol string) string {
		return u.Label(vol)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Flow Sensor</title>
<style>
body { font-family: monospace; max-width: 720px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.running { color: green; font-weight: bold; }
.stopped { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Flow Sensor<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>Meters</h2>
<table>
<tr><th>Meter</th><th>State</th><th>Rate</th><th>Volume</th><th>Window pulses</th></tr>
<tbody id="meters">
{{range .Readings}}<tr>
<td>{{.Meter}}</td>
<td class="{{if .Running}}running{{else}}stopped{{end}}">{{if .Running}}running{{else}}stopped{{end}}</td>
<td>{{round .Rate .Precision}} {{label .RateUnit .Unit}}</td>
<td>{{round .Volume .Precision}} {{.Unit}}</td>
<td>{{.WindowPulses}}</td>
</tr>{{else}}<tr><td colspan="5">no readings yet</td></tr>{{end}}
</tbody>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Publish</th><td>{{.Config.PublishMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var body = document.getElementById("meters");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function cell(text, cls) {
    var td = document.createElement("td");
    td.textContent = text;
    if (cls) td.className = cls;
    return td;
  }

  function render(meters) {
    while (body.firstChild) body.removeChild(body.firstChild);
    meters.forEach(function(m) {
      var tr = document.createElement("tr");
      tr.appendChild(cell(m.name));
      tr.appendChild(cell(m.running ? "running" : "stopped", m.running ? "running" : "stopped"));
      tr.appendChild(cell(m.rate + " " + m.rate_unit));
      tr.appendChild(cell(m.volume + " " + m.unit));
      tr.appendChild(cell(String(m.window_pulses)));
      body.appendChild(tr);
    });
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onmessage = function(ev) {
      try {
        var msg = JSON.parse(ev.data);
        if (msg.status && msg.status.meters) render(msg.status.meters);
      } catch (e) {}
    };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
  }
  connect();
})();
</script>
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
	indexTmpl.Execute(w, data)
}
