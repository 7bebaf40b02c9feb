package web

// Single-page dashboard fed by /api/stream, plus mining and leaderboard polling.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Fundboard</title>
  <link rel="preconnect" href="https://fonts.googleapis.com">
  <link rel="preconnect" href="https://fonts.gstatic.com" crossorigin>
  <link href="https://fonts.googleapis.com/css2?family=Press+Start+2P&family=Space+Mono:wght@400;700&display=swap" rel="stylesheet">
  <style>
    :root {
      --bg:#ffffff;
      --ink:#111111;
      --ink-mid:#4d4d4d;
      --ink-soft:#9c9c9c;
      --panel:#f6f6f6;
    }
    * { box-sizing:border-box; }
    body {
      margin:0;
      min-height:100vh;
      display:flex;
      justify-content:center;
      padding:2rem;
      background:var(--bg);
      color:var(--ink);
      font-family:'Space Mono','JetBrains Mono',monospace;
    }
    #app {
      width:min(1100px, 96vw);
      background:var(--panel);
      border:3px solid var(--ink);
      padding:2rem;
      box-shadow:12px 12px 0 rgba(0,0,0,.15);
      display:grid;
      grid-template-columns:repeat(auto-fit, minmax(320px, 1fr));
      gap:1.5rem;
    }
    .eyebrow {
      font-family:'Press Start 2P','Space Mono',monospace;
      font-size:.6rem;
      text-transform:uppercase;
      letter-spacing:.2em;
      margin:0 0 1rem;
    }
    .card {
      border:3px solid var(--ink);
      padding:1.5rem;
      background:#fff;
      box-shadow:8px 8px 0 rgba(0,0,0,.15);
    }
    .value { font-size:1.6rem; font-weight:700; letter-spacing:.06em; }
    .bar { height:18px; border:2px solid var(--ink); margin:1rem 0; background:#fff; }
    .bar > div { height:100%; background:var(--ink); width:0; transition:width .6s; }
    ul { list-style:none; padding:0; margin:0; font-size:.75rem; }
    li { display:flex; justify-content:space-between; padding:.35rem 0; border-bottom:1px dashed var(--ink-soft); }
    .name { font-weight:700; margin-right:.5rem; }
    .muted { color:var(--ink-mid); font-size:.7rem; }
    .degraded { color:#b00020; }
  </style>
</head>
<body>
  <div id="app">
    <section class="card">
      <p class="eyebrow">ETH raised</p>
      <div class="value" id="eth-total">-</div>
      <div class="bar"><div id="eth-bar"></div></div>
      <ul id="eth-list"></ul>
    </section>
    <section class="card">
      <p class="eyebrow">Token collected</p>
      <div class="value" id="token-total">-</div>
      <div class="bar"><div id="token-bar"></div></div>
      <ul id="token-list"></ul>
    </section>
    <section class="card">
      <p class="eyebrow">Claimed</p>
      <div class="value" id="claimed">-</div>
      <p class="eyebrow" style="margin-top:2rem">Mining</p>
      <ul id="mining"></ul>
      <p class="muted" id="status">connecting…</p>
    </section>
  </div>
  <script>
    const short = a => a.slice(0, 5) + '…' + a.slice(-5);
    const fmt = (n, d) => Number(n).toFixed(d);

    function renderRaise(prefix, total, goal, list, digits, unit) {
      document.getElementById(prefix + '-total').textContent =
        fmt(total, digits) + ' / ' + goal + ' ' + unit;
      const pct = goal > 0 ? Math.min(100, total / goal * 100) : 0;
      document.getElementById(prefix + '-bar').style.width = pct + '%';
      const ul = document.getElementById(prefix + '-list');
      ul.innerHTML = '';
      [...list].sort((a, b) => b.amount - a.amount).forEach(c => {
        const li = document.createElement('li');
        const who = document.createElement('span');
        if (c.name) {
          const n = document.createElement('span');
          n.className = 'name';
          n.textContent = c.name;
          who.appendChild(n);
        }
        who.appendChild(document.createTextNode(short(c.address)));
        const amt = document.createElement('span');
        amt.textContent = fmt(c.amount, digits) + ' ' + unit + ' (' + c.percentage + '%)';
        li.append(who, amt);
        ul.appendChild(li);
      });
    }

    const es = new EventSource('/api/stream');
    es.addEventListener('contributions', e => {
      const d = JSON.parse(e.data);
      renderRaise('eth', d.totalReceived, d.target, d.contributions, 4, 'ETH');
    });
    es.addEventListener('token-collection', e => {
      const d = JSON.parse(e.data);
      renderRaise('token', d.collected, d.goal, d.contributions, 2, '');
    });
    es.addEventListener('claimed', e => {
      document.getElementById('claimed').textContent = fmt(JSON.parse(e.data).claimed, 2);
    });
    es.onopen = () => { document.getElementById('status').textContent = 'live'; };
    es.onerror = () => { document.getElementById('status').textContent = 'reconnecting…'; };

    async function pollMining() {
      try {
        const res = await fetch('/api/mining-stats');
        const d = await res.json();
        const ul = document.getElementById('mining');
        ul.classList.toggle('degraded', res.headers.get('X-Data-Status') === 'degraded');
        ul.innerHTML = '';
        [['Hashrate', d.hashrate], ['Power', d.powerPercent + '%'],
         ['Mined / day', d.minedPerDay], ['Pending', d.currentlyMined]].forEach(([k, v]) => {
          const li = document.createElement('li');
          li.innerHTML = '<span></span><span></span>';
          li.children[0].textContent = k;
          li.children[1].textContent = v;
          ul.appendChild(li);
        });
      } catch (err) {
        console.error('mining stats', err);
      }
    }
    pollMining();
    setInterval(pollMining, 5000);
  </script>
</body>
</html>
`
