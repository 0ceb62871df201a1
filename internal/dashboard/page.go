// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package dashboard

// htmlPage is served at the mount root and talks to ./api and ./ws.
var htmlPage = `<!doctype html>
<html>
<head>
<meta charset="utf-8" />
<title>meteodash</title>
<style>
body { font-family: system-ui, -apple-system, "Segoe UI", Roboto, "Helvetica Neue", Arial; margin: 0 }
.layout { display: flex; min-height: 100vh }
aside { width: 260px; padding: 20px; background: #f4f5f7 }
main { flex: 1; padding: 24px; max-width: 1100px }
.card { border-radius: 8px; padding: 16px; margin-bottom: 16px; box-shadow: 0 2px 6px rgba(0,0,0,0.08) }
.metrics { display: flex; gap: 16px }
.metric { flex: 1 }
.metric .value { font-size: 1.8em }
.banner { padding: 8px 12px; border-radius: 6px }
.banner.ok { background: #e3f6e8 }
.banner.down { background: #fdf1d8 }
.frames { display: flex; gap: 16px }
.frames pre { flex: 1; background: #fafafa; padding: 8px; overflow: auto }
label { display: block; margin-top: 8px }
input[type=range] { width: 100% }
#swatch { height: 24px; border-radius: 4px; margin-top: 12px; border: 1px solid #ccc }
</style>
</head>
<body>
<div class="layout">
<aside>
  <h2>RGB LED control</h2>
  <label><input type="checkbox" id="synchro" /> Synchro mode</label>
  <h3 id="station">Local station</h3>
  <label>Red <input type="range" id="r" min="0" max="255" value="0" /></label>
  <label>Green <input type="range" id="g" min="0" max="255" value="0" /></label>
  <label>Blue <input type="range" id="b" min="0" max="255" value="0" /></label>
  <div id="swatch"></div>
  <p id="caption"></p>
  <p id="modeinfo"></p>
</aside>
<main>
  <div id="banner" class="banner down">waiting...</div>
  <h1 id="title">Current conditions</h1>
  <div class="card metrics">
    <div class="metric">Temperature<div class="value" id="temp">-</div></div>
    <div class="metric">Humidity<div class="value" id="hum">-</div></div>
    <div class="metric">Light<div class="value" id="lum">-</div></div>
  </div>
  <div class="card">
    <b>Feeling:</b> <span id="feeling"></span><br/>
    <b>Period:</b> <span id="period"></span>
  </div>
  <div class="card"><canvas id="chart" width="1000" height="300"></canvas></div>
  <div class="frames">
    <div class="card" style="flex:1"><h3>Last sensor frame</h3><pre id="sensor"></pre></div>
    <div class="card" style="flex:1"><h3>Last synchro frame</h3><pre id="synchroFrame"></pre></div>
  </div>
</main>
</div>

<!-- Chart.js from CDN -->
<script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
<script>
let ws;
let chart;
let dragging = false;

function send(msg) {
  if (ws && ws.readyState === WebSocket.OPEN) {
    ws.send(JSON.stringify(msg));
  } else {
    const path = msg.command === 'mode' ? './api/mode' : './api/color';
    fetch(path, { method: 'POST', body: JSON.stringify(msg) });
  }
}

function sliders() {
  return {
    r: parseInt(document.getElementById('r').value, 10),
    g: parseInt(document.getElementById('g').value, 10),
    b: parseInt(document.getElementById('b').value, 10),
  };
}

function paintSwatch(c) {
  document.getElementById('swatch').style.background = 'rgb(' + c.r + ',' + c.g + ',' + c.b + ')';
}

for (const id of ['r', 'g', 'b']) {
  const el = document.getElementById(id);
  el.addEventListener('input', () => {
    dragging = true;
    const c = sliders();
    paintSwatch(c);
    send(Object.assign({ command: 'color', drag: true }, c));
  });
  el.addEventListener('change', () => {
    dragging = false;
    send(Object.assign({ command: 'color', drag: false }, sliders()));
  });
}

document.getElementById('synchro').addEventListener('change', (e) => {
  send({ command: 'mode', synchro: e.target.checked });
});

function render(s) {
  const banner = document.getElementById('banner');
  banner.textContent = s.banner;
  banner.className = 'banner ' + (s.connected ? 'ok' : 'down');
  document.getElementById('title').textContent = 'Current conditions - ' + s.city;
  document.getElementById('temp').textContent = s.temperature;
  document.getElementById('hum').textContent = s.humidity;
  document.getElementById('lum').textContent = s.light;
  document.getElementById('feeling').textContent = s.feeling;
  document.getElementById('period').textContent = s.period;
  document.getElementById('sensor').textContent = JSON.stringify(s.sensor, null, 2);
  document.getElementById('synchroFrame').textContent = JSON.stringify(s.synchro, null, 2);

  const ctl = s.control;
  document.getElementById('synchro').checked = ctl.synchro;
  document.getElementById('station').textContent = ctl.synchro ? 'Remote station' : 'Local station';
  document.getElementById('modeinfo').textContent = ctl.synchro
    ? 'SYNCHRO mode: controls drive the remote LED.'
    : 'NORMAL mode: controls drive the local LED.';
  document.getElementById('caption').textContent = ctl.caption || '';
  if (!dragging) {
    const c = ctl.synchro ? ctl.remote : ctl.local;
    document.getElementById('r').value = c.r;
    document.getElementById('g').value = c.g;
    document.getElementById('b').value = c.b;
    paintSwatch(c);
  }
}

async function renderHistory() {
  const res = await fetch('./api/history');
  const a = await res.json();
  const labels = a.map(x => new Date(x.time).toLocaleTimeString());
  const sets = [
    { label: 'Temperature (°C)', data: a.map(x => x.temp), tension: 0.2 },
    { label: 'Humidity (%)', data: a.map(x => x.hum), tension: 0.2 },
    { label: 'Light', data: a.map(x => x.lum), tension: 0.2 },
  ];
  const ctx = document.getElementById('chart').getContext('2d');
  if (!chart) {
    chart = new Chart(ctx, {
      type: 'line',
      data: { labels, datasets: sets },
      options: { animation: false, scales: { x: { display: true }, y: { beginAtZero: false } } }
    });
  } else {
    chart.data.labels = labels;
    sets.forEach((s, i) => { chart.data.datasets[i].data = s.data; });
    chart.update();
  }
}

function connect() {
  const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
  ws = new WebSocket(proto + location.host + location.pathname.replace(/\/?$/, '/') + 'ws');
  ws.onmessage = (ev) => render(JSON.parse(ev.data));
  ws.onclose = () => setTimeout(connect, 2000);
}

fetch('./api/state').then(r => r.json()).then(render);
connect();
renderHistory();
setInterval(renderHistory, 2000);
</script>
</body>
</html>`
