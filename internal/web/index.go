package web

// indexHTML minimal console: selects a pair and prints the live views.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>xrpdesk</title>
  <style>
    body { font-family: monospace; margin: 2rem; }
    pre { background: #f4f4f4; padding: 1rem; overflow: auto; }
    .row { display: flex; gap: .5rem; margin-bottom: 1rem; }
  </style>
</head>
<body>
  <div class="row">
    <input id="pair" size="60" placeholder="XRP_USD.rhub8VRN55s94qWKDv6jmDy1pUykJzF3wq" />
    <input id="account" size="36" placeholder="account (optional)" />
    <button id="select">select</button>
    <button id="refresh">refresh</button>
    <button id="clear">clear</button>
  </div>
  <h3>market</h3>
  <pre id="market">loading</pre>
  <h3>journaled fills</h3>
  <pre id="fills"></pre>
  <script>
    const post = (path, body) => fetch(path, {
      method: 'POST',
      headers: {'Content-Type': 'application/json'},
      body: JSON.stringify(body || {}),
    }).then(r => r.json());

    document.getElementById('select').onclick = () => post('/api/select', {
      pair: document.getElementById('pair').value,
      account: document.getElementById('account').value,
    });
    document.getElementById('refresh').onclick = () => post('/api/refresh');
    document.getElementById('clear').onclick = () => post('/api/clear');
    document.addEventListener('visibilitychange', () =>
      post('/api/visibility', {visible: document.visibilityState === 'visible'}));

    const market = new EventSource('/market/stream');
    market.addEventListener('market', e => {
      document.getElementById('market').textContent = JSON.stringify(JSON.parse(e.data), null, 2);
    });

    const fills = new EventSource('/fills/stream');
    fills.addEventListener('fill', e => {
      const f = JSON.parse(e.data);
      const el = document.getElementById('fills');
      el.textContent = f.pair + ' ' + f.fill.side + ' ' + f.fill.baseAmount + ' @ ' + f.fill.price + '\n' + el.textContent;
    });
  </script>
</body>
</html>
`
