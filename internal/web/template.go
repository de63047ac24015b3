package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/jhyland87/Cryocooler-Controller/internal/command"
	"github.com/jhyland87/Cryocooler-Controller/internal/status"
	"github.com/jhyland87/Cryocooler-Controller/internal/telemetry"
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
	"relay": telemetry.RelayName,
	"onoff": func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Cryocooler</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.fault { color: red; font-weight: bold; }
.ready { color: green; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.swatch { display: inline-block; width: 12px; height: 12px; border: 1px solid #888; vertical-align: middle; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
button { font-family: monospace; margin-right: 0.5em; }
</style>
</head>
<body>
<h1>Cryocooler{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>State</h2>
{{if .HasFrame}}{{with .Frame}}<table>
<tr><th>State</th><td id="state" class="{{if eq .State "Fault"}}fault{{else if eq .State "Operating"}}ready{{end}}">{{.State}} ({{.StateCode}})</td></tr>
<tr><th>Status</th><td id="status">{{.Status}}</td></tr>
<tr><th>Running</th><td id="running">{{if .Running}}yes{{else}}no{{end}}</td></tr>
<tr><th>Temperature</th><td id="temperature">{{printf "%.2f" .TemperatureK}} K ({{printf "%.2f" .TemperatureC}} &deg;C)</td></tr>
<tr><th>Cooldown</th><td id="cooldown">{{printf "%.1f" .CooldownPercent}}%</td></tr>
<tr><th>Cooling rate</th><td id="rate">{{printf "%.3f" .CoolingRate}} K/min{{if .Stalled}} (stalled){{end}}</td></tr>
<tr><th>Actuator</th><td id="actuator">{{.Commanded}} / {{.Target}}</td></tr>
<tr><th>Line voltage</th><td id="voltage">{{printf "%.2f" .LineVoltage}} V</td></tr>
<tr><th>Current</th><td id="current">{{printf "%.2f" .CurrentA}} A (baseline {{printf "%.2f" .BaselineA}} A)</td></tr>
<tr><th>Backoffs</th><td id="backoff">{{.BackoffCount}}</td></tr>
<tr><th>Relay</th><td id="relay">{{relay .Bypass}}</td></tr>
<tr><th>Alarm</th><td id="alarm">{{onoff .Alarm}}</td></tr>
<tr><th>Lamps</th><td><span id="led" class="swatch" style="background: {{.Colour}}"></span> fault {{onoff .FaultLit}}, ready {{onoff .ReadyLit}}</td></tr>
{{if .RunID}}<tr><th>Run</th><td>{{.RunID}}</td></tr>{{end}}
</table>{{end}}{{else}}<p>Waiting for first tick&hellip;</p>{{end}}
{{if .Commands}}
<p>{{range .Commands}}<button onclick="send('{{.}}')">{{.}}</button>{{end}}<span id="reply"></span></p>
{{end}}

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
{{if .Config.Broker}}<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>{{end}}
{{if .Config.KafkaTopic}}<tr><th>Kafka topic</th><td>{{.Config.KafkaTopic}}</td></tr>{{end}}
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>IO</th><td>{{.Config.IO}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Setpoint</th><td>{{.Config.SetpointK}} &plusmn; {{.Config.ToleranceK}} K</td></tr>
<tr><th>Telemetry</th><td>{{if .TelemetryEnabled}}enabled{{else}}disabled{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/history.json">History</a>{{if .Journal}} | <a href="/transitions.json">Transitions</a> | <a href="/runs.json">Runs</a>{{end}}{{if .Metrics}} | <a href="/metrics">Metrics</a>{{end}}</p>
{{if .Commands}}
<script>
function send(name) {
  var el = document.getElementById("reply");
  fetch("/command/" + name.replace(" ", "-"), { method: "POST" })
    .then(function(r) { return r.json(); })
    .then(function(reply) {
      el.textContent = (reply.ok ? "[OK] " : "[ERR] ") + (reply.message || reply.error);
      if (reply.ok) { setTimeout(function() { location.reload(); }, 500); }
    })
    .catch(function(e) { el.textContent = "[ERR] " + e; });
}
</script>
{{end}}
{{if .Config.WSBroker}}
<script src="https://unpkg.com/mqtt/dist/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "{{.Config.Topic}}";
  var dot = document.getElementById("live-dot");

  function set(id, text) {
    var el = document.getElementById(id);
    if (el) { el.textContent = text; }
  }

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe(topic);
  });

  client.on("reconnect", function() {
    setDot("pending", "reconnecting");
  });

  client.on("offline", function() {
    setDot("err", "offline");
  });

  client.on("error", function() {
    setDot("err", "error");
  });

  client.on("message", function(t, payload) {
    try {
      var c = JSON.parse(payload.toString()).cryocooler;
      if (!c) { return; }
      set("state", c.state + " (" + c.state_code + ")");
      set("status", c.status);
      set("running", c.running ? "yes" : "no");
      set("temperature", c.temperature_k.toFixed(2) + " K (" + c.temperature_c.toFixed(2) + " °C)");
      set("cooldown", c.cooldown_percent.toFixed(1) + "%");
      set("rate", c.cooling_rate_k_per_min.toFixed(3) + " K/min" + (c.stalled ? " (stalled)" : ""));
      set("actuator", c.commanded + " / " + c.target);
      set("voltage", c.line_voltage.toFixed(2) + " V");
      set("current", c.current_a.toFixed(2) + " A (baseline " + c.current_baseline_a.toFixed(2) + " A)");
      set("backoff", c.backoff_count);
      set("relay", c.relay);
      set("alarm", c.alarm ? "on" : "off");
      var led = document.getElementById("led");
      if (led) { led.style.background = c.led_colour; }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot, opts Options) {
	data := struct {
		status.Snapshot
		Uptime   time.Duration
		Commands []command.Name
		Journal  bool
		Metrics  bool
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Journal:  opts.Journal != nil,
		Metrics:  opts.Metrics != nil,
	}
	if opts.Commands != nil {
		data.Commands = []command.Name{command.Start, command.Stop, command.Off}
	}
	indexTmpl.Execute(w, data)
}
