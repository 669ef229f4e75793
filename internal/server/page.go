package server

import (
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"
)

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>CMR Console</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem auto; max-width: 60rem; }
#statusdot { display:inline-block; width:.7rem; height:.7rem; border-radius:50%; background:#999; }
#statusdot.online { background:#2a2; }
#statusdot.offline { background:#c33; }
.notice { color:#964b00; font-size:.9rem; }
table.recs { border-collapse: collapse; width: 100%; }
table.recs td, table.recs th { border: 1px solid #ccc; padding: .35rem .5rem; text-align: left; }
.badge.ok { color:#2a2; } .badge.warn { color:#c33; }
</style>
</head>
<body>
<h1>CMR Console <span id="statusdot" title="agent status"></span></h1>
<form id="qform">
<input id="query" name="query" size="60" placeholder="Find MODIS aerosol datasets 2020 global">
<input id="session" name="session_id" size="20" placeholder="session id (optional)">
<button id="run" type="submit">Run</button>
<button id="start" type="button">Stream</button>
<button id="stop" type="button" disabled>Stop</button>
<a id="download" href="#" hidden>Download response</a>
</form>
<div id="log"></div>
<div id="view"></div>
<script>
(function () {
  var es = null, sid = "";
  function $(id) { return document.getElementById(id); }
  function note(msg) {
    var p = document.createElement("p");
    p.className = "notice"; p.textContent = msg;
    $("log").appendChild(p);
  }
  function apply(frame) {
    sid = frame.session_id || sid;
    $("view").innerHTML = frame.html || "";
    if (sid) { $("download").href = "/api/sessions/" + encodeURIComponent(sid) + "/response.json"; $("download").hidden = false; }
  }
  function setStreaming(active) {
    $("start").disabled = active; $("run").disabled = active; $("stop").disabled = !active;
  }
  document.addEventListener("click", function (ev) {
    var btn = ev.target.closest("button.copy");
    if (btn) { navigator.clipboard.writeText(btn.dataset.copy); }
  });
  $("qform").addEventListener("submit", function (ev) {
    ev.preventDefault();
    var q = $("query").value.trim();
    if (!q) { note("enter a query"); return; }
    $("log").textContent = "";
    fetch("/api/query?query=" + encodeURIComponent(q) + "&session_id=" + encodeURIComponent($("session").value))
      .then(function (r) { return r.json(); })
      .then(function (body) { if (body.raw_text) { note(body.raw_text); } else { apply(body); } })
      .catch(function (err) { note("query failed: " + err); });
  });
  $("start").addEventListener("click", function () {
    var q = $("query").value.trim();
    if (!q) { note("enter a query"); return; }
    if (es) { es.close(); }
    $("log").textContent = "";
    es = new EventSource("/api/stream?query=" + encodeURIComponent(q) + "&session_id=" + encodeURIComponent($("session").value));
    es.addEventListener("update", function (ev) { apply(JSON.parse(ev.data)); });
    es.addEventListener("notice", function (ev) { note(JSON.parse(ev.data).message); });
    es.addEventListener("control", function (ev) { setStreaming(JSON.parse(ev.data).streaming); });
    es.addEventListener("end", function () { es.close(); es = null; setStreaming(false); });
    es.onerror = function () { if (es) { es.close(); es = null; setStreaming(false); } };
  });
  $("stop").addEventListener("click", function () {
    if (es) { es.close(); es = null; setStreaming(false); }
  });
  function poll() {
    fetch("/api/status").then(function (r) { return r.json(); }).then(function (body) {
      $("statusdot").className = body.online ? "online" : "offline";
    }).catch(function () { $("statusdot").className = "offline"; });
  }
  poll(); setInterval(poll, 15000);
})();
</script>
</body>
</html>`))

// page serves the console shell; all state arrives over /api.
func (s *Server) page(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	return pageTmpl.Execute(c.Response(), nil)
}
