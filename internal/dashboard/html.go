package dashboard

// indexHTML is the single-page dashboard. It consumes the SSE streams and
// the MJPEG endpoint served by this package.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Multi-Camera Monitor</title>
<style>
  body { margin: 0; background: #111; color: #ddd; font-family: system-ui, sans-serif; }
  header { padding: 10px 16px; background: #1b1b1b; display: flex; gap: 24px; align-items: baseline; }
  header h1 { font-size: 16px; margin: 0; }
  #status span { margin-right: 16px; font-size: 13px; }
  .ok { color: #4caf50; }
  .warn { color: #ffb300; }
  .bad { color: #f44336; }
  #cameras { display: grid; grid-template-columns: repeat(auto-fit, minmax(480px, 1fr)); gap: 8px; padding: 8px; }
  .camera { background: #000; position: relative; }
  .camera img { width: 100%; display: block; }
  .camera .name { position: absolute; top: 6px; left: 8px; font-size: 12px; background: rgba(0,0,0,.6); padding: 2px 6px; }
  #tracking { padding: 8px 16px; font-size: 13px; color: #9e9e9e; }
</style>
</head>
<body>
<header>
  <h1>Multi-Camera Monitor</h1>
  <div id="status">
    <span id="ws">ws: &#8212;</span>
    <span id="api">api: &#8212;</span>
    <span id="score">resilience: &#8212;</span>
  </div>
</header>
<div id="cameras"></div>
<div id="tracking">waiting for tracking data&#8230;</div>
<script>
const wsEl = document.getElementById('ws');
const apiEl = document.getElementById('api');
const scoreEl = document.getElementById('score');
const camerasEl = document.getElementById('cameras');
const trackingEl = document.getElementById('tracking');
const known = new Set();

function cls(good, warn) { return good ? 'ok' : (warn ? 'warn' : 'bad'); }

function addCamera(id) {
  if (known.has(id)) return;
  known.add(id);
  const div = document.createElement('div');
  div.className = 'camera';
  div.innerHTML = '<span class="name">' + id + '</span>' +
    '<img src="/stream?camera=' + encodeURIComponent(id) + '" alt="' + id + '">';
  camerasEl.appendChild(div);
}

const statusStream = new EventSource('/api/status/stream');
statusStream.onmessage = (ev) => {
  const s = JSON.parse(ev.data);
  wsEl.textContent = 'ws: ' + s.websocket_status + ' (' + s.websocket_quality + ')';
  wsEl.className = cls(s.websocket_status === 'connected', s.websocket_status === 'connecting');
  apiEl.textContent = 'api: ' + (s.api.status || 'unknown');
  apiEl.className = cls(s.api.healthy, false);
  const overall = s.resilience.overall || 0;
  scoreEl.textContent = 'resilience: ' + overall.toFixed(0) + ' (' + (s.resilience.trend || 'stable') + ')';
  scoreEl.className = cls(overall >= 75, overall >= 50);
  (s.cameras || []).forEach(addCamera);
};

const trackingStream = new EventSource('/api/tracking/stream');
trackingStream.onmessage = (ev) => {
  const r = JSON.parse(ev.data);
  trackingEl.textContent = 'frame ' + r.frame_index + ' | scene ' + (r.scene_id || '?') +
    ' | persons on screen: ' + r.total_persons + ' | unique: ' + r.unique_persons;
};
</script>
</body>
</html>
`
