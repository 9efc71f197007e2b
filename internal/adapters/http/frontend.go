package http

import (
	"net/http"
)

// frontendHTML is the embedded HTML for the region management frontend.
// Mobile-first, responsive design with pure CSS.
const frontendHTML = `<!DOCTYPE html>
<html lang="de">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>tilevault - Offline-Karten</title>
    <style>
        :root {
            --primary: #2563eb;
            --primary-dark: #1d4ed8;
            --success: #16a34a;
            --error: #dc2626;
            --warning: #d97706;
            --bg: #f8fafc;
            --card: #ffffff;
            --text: #1e293b;
            --text-muted: #64748b;
            --border: #e2e8f0;
            --radius: 8px;
            --shadow: 0 1px 3px rgba(0,0,0,0.1);
        }

        * {
            box-sizing: border-box;
            margin: 0;
            padding: 0;
        }

        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: var(--bg);
            color: var(--text);
            line-height: 1.5;
            min-height: 100vh;
        }

        .container {
            max-width: 800px;
            margin: 0 auto;
            padding: 1rem;
        }

        header {
            text-align: center;
            padding: 1.5rem 0;
            border-bottom: 1px solid var(--border);
            margin-bottom: 1.5rem;
        }

        header h1 {
            font-size: 1.5rem;
            font-weight: 600;
            color: var(--primary);
        }

        header p {
            color: var(--text-muted);
            font-size: 0.875rem;
            margin-top: 0.25rem;
        }

        .card {
            background: var(--card);
            border-radius: var(--radius);
            box-shadow: var(--shadow);
            padding: 1.25rem;
            margin-bottom: 1rem;
        }

        .card-title {
            font-size: 0.875rem;
            font-weight: 600;
            color: var(--text-muted);
            text-transform: uppercase;
            letter-spacing: 0.05em;
            margin-bottom: 1rem;
        }

        .form-group {
            margin-bottom: 1rem;
        }

        label {
            display: block;
            font-size: 0.875rem;
            font-weight: 500;
            margin-bottom: 0.375rem;
            color: var(--text);
        }

        input {
            width: 100%;
            padding: 0.625rem 0.75rem;
            font-size: 1rem;
            border: 1px solid var(--border);
            border-radius: var(--radius);
            background: var(--card);
            color: var(--text);
            transition: border-color 0.15s, box-shadow 0.15s;
        }

        input:focus {
            outline: none;
            border-color: var(--primary);
            box-shadow: 0 0 0 3px rgba(37, 99, 235, 0.1);
        }

        input::placeholder {
            color: var(--text-muted);
        }

        input[type="checkbox"] {
            width: auto;
        }

        .coord-grid {
            display: grid;
            grid-template-columns: 1fr 1fr;
            gap: 0.75rem;
        }

        .btn {
            display: inline-flex;
            align-items: center;
            justify-content: center;
            width: 100%;
            padding: 0.75rem 1rem;
            font-size: 1rem;
            font-weight: 500;
            color: white;
            background: var(--primary);
            border: none;
            border-radius: var(--radius);
            cursor: pointer;
            transition: background-color 0.15s;
        }

        .btn:hover {
            background: var(--primary-dark);
        }

        .btn:disabled {
            background: var(--text-muted);
            cursor: not-allowed;
        }

        .btn-secondary {
            background: var(--card);
            color: var(--text);
            border: 1px solid var(--border);
        }

        .btn-secondary:hover {
            background: var(--bg);
        }

        .btn-danger {
            background: var(--error);
        }

        .btn-danger:hover {
            background: #b91c1c;
        }

        .btn-small {
            width: auto;
            padding: 0.375rem 0.75rem;
            font-size: 0.8125rem;
        }

        .btn-row {
            display: grid;
            grid-template-columns: 1fr auto;
            gap: 0.5rem;
        }

        .error {
            background: #fef2f2;
            border: 1px solid #fecaca;
            color: var(--error);
            padding: 0.75rem 1rem;
            border-radius: var(--radius);
            font-size: 0.875rem;
            margin-bottom: 1rem;
            display: none;
        }

        .error.active {
            display: block;
        }

        .estimate-info {
            background: var(--bg);
            border: 1px solid var(--border);
            border-radius: var(--radius);
            padding: 0.75rem 1rem;
            font-size: 0.875rem;
            color: var(--text-muted);
            margin-bottom: 1rem;
            display: none;
        }

        .estimate-info.active {
            display: block;
        }

        .region-card {
            border: 1px solid var(--border);
            border-radius: var(--radius);
            margin-bottom: 0.75rem;
            padding: 0.75rem 1rem;
        }

        .region-header {
            display: flex;
            justify-content: space-between;
            align-items: center;
            flex-wrap: wrap;
            gap: 0.5rem;
        }

        .region-name {
            font-weight: 500;
            font-size: 0.9375rem;
        }

        .region-meta {
            display: flex;
            gap: 0.75rem;
            align-items: center;
            font-size: 0.75rem;
            color: var(--text-muted);
        }

        .badge {
            display: inline-flex;
            align-items: center;
            padding: 0.125rem 0.5rem;
            font-size: 0.75rem;
            font-weight: 500;
            border-radius: 9999px;
            background: #e2e8f0;
            color: var(--text-muted);
        }

        .badge-primary {
            background: #dbeafe;
            color: var(--primary);
        }

        .badge-success {
            background: #dcfce7;
            color: var(--success);
        }

        .badge-warning {
            background: #fef3c7;
            color: var(--warning);
        }

        .progress-track {
            height: 6px;
            background: var(--bg);
            border-radius: 3px;
            margin-top: 0.5rem;
            overflow: hidden;
        }

        .progress-fill {
            height: 100%;
            background: var(--primary);
            border-radius: 3px;
            transition: width 0.3s;
        }

        .region-actions {
            display: flex;
            gap: 0.5rem;
            margin-top: 0.625rem;
        }

        .cache-bar {
            display: flex;
            justify-content: space-between;
            font-size: 0.8125rem;
            color: var(--text-muted);
            margin-bottom: 0.375rem;
        }

        .toggle-row {
            display: flex;
            align-items: center;
            justify-content: space-between;
            padding: 0.5rem 0;
            border-bottom: 1px solid var(--border);
        }

        .toggle-row:last-of-type {
            border-bottom: none;
        }

        .toggle-row label {
            margin-bottom: 0;
        }

        .no-regions {
            text-align: center;
            padding: 2rem;
            color: var(--text-muted);
        }

        footer {
            text-align: center;
            padding: 1.5rem 0;
            color: var(--text-muted);
            font-size: 0.75rem;
            border-top: 1px solid var(--border);
            margin-top: 2rem;
        }

        footer a {
            color: var(--primary);
            text-decoration: none;
        }

        footer a:hover {
            text-decoration: underline;
        }

        /* Tablet and up */
        @media (min-width: 640px) {
            .container {
                padding: 2rem;
            }

            header {
                padding: 2rem 0;
            }

            header h1 {
                font-size: 1.75rem;
            }

            .card {
                padding: 1.5rem;
            }

            .coord-grid {
                grid-template-columns: repeat(4, 1fr);
            }
        }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>tilevault</h1>
            <p>Offline-Kartenkacheln verwalten</p>
        </header>

        <div class="error" id="error"></div>

        <div class="card">
            <h2 class="card-title">Neue Region</h2>
            <form id="regionForm">
                <div class="form-group">
                    <label for="regionName">Name</label>
                    <input type="text" id="regionName" placeholder="z.B. Innenstadt" required>
                </div>

                <div class="coord-grid">
                    <div class="form-group">
                        <label for="north">Nord</label>
                        <input type="text" id="north" placeholder="z.B. 6.4" inputmode="decimal" required>
                    </div>
                    <div class="form-group">
                        <label for="south">S&uuml;d</label>
                        <input type="text" id="south" placeholder="z.B. 6.0" inputmode="decimal" required>
                    </div>
                    <div class="form-group">
                        <label for="east">Ost</label>
                        <input type="text" id="east" placeholder="z.B. 1.4" inputmode="decimal" required>
                    </div>
                    <div class="form-group">
                        <label for="west">West</label>
                        <input type="text" id="west" placeholder="z.B. 1.0" inputmode="decimal" required>
                    </div>
                </div>

                <div class="coord-grid">
                    <div class="form-group">
                        <label for="minZoom">Zoom von</label>
                        <input type="number" id="minZoom" value="10" min="0" max="20" required>
                    </div>
                    <div class="form-group">
                        <label for="maxZoom">Zoom bis</label>
                        <input type="number" id="maxZoom" value="14" min="0" max="20" required>
                    </div>
                </div>

                <div class="estimate-info" id="estimateInfo"></div>

                <div class="btn-row">
                    <button type="submit" class="btn" id="addBtn">Region anlegen</button>
                    <button type="button" class="btn btn-secondary" id="estimateBtn">Sch&auml;tzen</button>
                </div>
            </form>
        </div>

        <div class="card">
            <h2 class="card-title">Regionen</h2>
            <div id="regionList">
                <div class="no-regions">Keine Regionen angelegt.</div>
            </div>
        </div>

        <div class="card">
            <h2 class="card-title">Cache</h2>
            <div class="cache-bar">
                <span id="cacheUsage">0 MB</span>
                <span id="cacheBudget">von 500 MB</span>
            </div>
            <div class="progress-track">
                <div class="progress-fill" id="cacheFill" style="width: 0%"></div>
            </div>
            <div class="region-actions">
                <button type="button" class="btn btn-secondary btn-small" id="cleanupBtn">Aufr&auml;umen</button>
                <button type="button" class="btn btn-danger btn-small" id="clearBtn">Cache leeren</button>
            </div>
        </div>

        <div class="card">
            <h2 class="card-title">Einstellungen</h2>
            <div class="toggle-row">
                <label for="offlineMode">Offline-Modus</label>
                <input type="checkbox" id="offlineMode">
            </div>
            <div class="toggle-row">
                <label for="autoDownload">Automatisch herunterladen</label>
                <input type="checkbox" id="autoDownload">
            </div>
            <div class="toggle-row">
                <label for="maxCacheSize">Cache-Budget (MB)</label>
                <input type="number" id="maxCacheSize" min="1" style="width: 120px">
            </div>
        </div>

        <footer>
            <a href="/docs">API Dokumentation</a> &middot;
            <a href="/openapi.json">OpenAPI Spec</a> &middot;
            <a href="/health">Health Status</a>
        </footer>
    </div>

    <script>
        (function() {
            const form = document.getElementById('regionForm');
            const addBtn = document.getElementById('addBtn');
            const estimateBtn = document.getElementById('estimateBtn');
            const estimateInfo = document.getElementById('estimateInfo');
            const regionList = document.getElementById('regionList');
            const error = document.getElementById('error');
            const cacheUsage = document.getElementById('cacheUsage');
            const cacheBudget = document.getElementById('cacheBudget');
            const cacheFill = document.getElementById('cacheFill');
            const cleanupBtn = document.getElementById('cleanupBtn');
            const clearBtn = document.getElementById('clearBtn');
            const offlineMode = document.getElementById('offlineMode');
            const autoDownload = document.getElementById('autoDownload');
            const maxCacheSize = document.getElementById('maxCacheSize');

            const statusLabels = {
                'pending': 'Ausstehend',
                'downloading': 'Lädt...',
                'partial': 'Unvollständig',
                'complete': 'Vollständig'
            };

            const statusBadges = {
                'pending': 'badge',
                'downloading': 'badge badge-primary',
                'partial': 'badge badge-warning',
                'complete': 'badge badge-success'
            };

            let pollTimer = null;

            function showError(message) {
                error.textContent = message;
                error.classList.add('active');
            }

            function hideError() {
                error.classList.remove('active');
            }

            async function api(path, options) {
                const response = await fetch(path, options);
                if (!response.ok) {
                    let message = 'Anfrage fehlgeschlagen';
                    try {
                        const data = await response.json();
                        message = data.message || data.error || message;
                    } catch (parseErr) {
                        // Response could not be parsed as JSON
                    }
                    throw new Error(message);
                }
                if (response.status === 204) {
                    return null;
                }
                return response.json();
            }

            function readBounds() {
                return {
                    north: parseFloat(document.getElementById('north').value.replace(',', '.')),
                    south: parseFloat(document.getElementById('south').value.replace(',', '.')),
                    east: parseFloat(document.getElementById('east').value.replace(',', '.')),
                    west: parseFloat(document.getElementById('west').value.replace(',', '.')),
                    min_zoom: parseInt(document.getElementById('minZoom').value, 10),
                    max_zoom: parseInt(document.getElementById('maxZoom').value, 10)
                };
            }

            function escapeHtml(str) {
                if (!str) return '';
                return String(str)
                    .replace(/&/g, '&amp;')
                    .replace(/</g, '&lt;')
                    .replace(/>/g, '&gt;')
                    .replace(/"/g, '&quot;')
                    .replace(/'/g, '&#39;');
            }

            function renderRegion(region) {
                const label = statusLabels[region.status] || region.status;
                const badge = statusBadges[region.status] || 'badge';
                const pct = Math.round((region.progress || 0) * 100);

                let html = '<div class="region-card">';
                html += '<div class="region-header">';
                html += '<span class="region-name">' + escapeHtml(region.name) + '</span>';
                html += '<div class="region-meta">';
                html += '<span class="' + badge + '">' + label + '</span>';
                html += '<span>Zoom ' + region.min_zoom + '–' + region.max_zoom + '</span>';
                html += '<span>' + (region.size_on_disk_mb || 0).toFixed(1) + ' MB</span>';
                html += '</div></div>';

                if (region.status === 'downloading') {
                    html += '<div class="progress-track"><div class="progress-fill" style="width: ' + pct + '%"></div></div>';
                }

                html += '<div class="region-actions">';
                if (region.status === 'downloading') {
                    html += '<button class="btn btn-secondary btn-small" data-action="cancel" data-id="' + region.id + '">Abbrechen</button>';
                } else {
                    html += '<button class="btn btn-small" data-action="download" data-id="' + region.id + '">Herunterladen</button>';
                }
                html += '<button class="btn btn-danger btn-small" data-action="remove" data-id="' + region.id + '">Löschen</button>';
                html += '</div></div>';
                return html;
            }

            async function loadRegions() {
                const data = await api('/api/v1/regions');
                if (!data.regions || data.regions.length === 0) {
                    regionList.innerHTML = '<div class="no-regions">Keine Regionen angelegt.</div>';
                    stopPolling();
                    return;
                }

                regionList.innerHTML = data.regions.map(renderRegion).join('');

                const downloading = data.regions.some(function(r) { return r.status === 'downloading'; });
                if (downloading) {
                    startPolling();
                } else {
                    stopPolling();
                }
            }

            async function loadCache() {
                const data = await api('/api/v1/cache');
                cacheUsage.textContent = data.size_mb.toFixed(1) + ' MB';
                cacheBudget.textContent = 'von ' + data.max_size_mb.toFixed(0) + ' MB';
                const pct = data.max_size_mb > 0 ? Math.min(100, data.size_mb / data.max_size_mb * 100) : 0;
                cacheFill.style.width = pct + '%';
            }

            async function loadSettings() {
                const data = await api('/api/v1/settings');
                offlineMode.checked = data.offline_mode;
                autoDownload.checked = data.auto_download;
                maxCacheSize.value = data.max_cache_size_mb;
            }

            async function refresh() {
                try {
                    await loadRegions();
                    await loadCache();
                } catch (err) {
                    showError(err.message);
                    stopPolling();
                }
            }

            function startPolling() {
                if (pollTimer === null) {
                    pollTimer = setInterval(refresh, 2000);
                }
            }

            function stopPolling() {
                if (pollTimer !== null) {
                    clearInterval(pollTimer);
                    pollTimer = null;
                }
            }

            form.addEventListener('submit', async function(e) {
                e.preventDefault();
                hideError();

                const body = readBounds();
                body.name = document.getElementById('regionName').value;

                addBtn.disabled = true;
                try {
                    await api('/api/v1/regions', {
                        method: 'POST',
                        headers: { 'Content-Type': 'application/json' },
                        body: JSON.stringify(body)
                    });
                    form.reset();
                    estimateInfo.classList.remove('active');
                    await refresh();
                } catch (err) {
                    showError(err.message);
                } finally {
                    addBtn.disabled = false;
                }
            });

            estimateBtn.addEventListener('click', async function() {
                hideError();
                const b = readBounds();
                const query = '/api/v1/estimate?north=' + b.north + '&south=' + b.south +
                    '&east=' + b.east + '&west=' + b.west +
                    '&min_zoom=' + b.min_zoom + '&max_zoom=' + b.max_zoom;

                try {
                    const data = await api(query);
                    estimateInfo.textContent = data.tile_count + ' Kacheln, ca. ' +
                        data.estimated_size_mb.toFixed(1) + ' MB';
                    estimateInfo.classList.add('active');
                } catch (err) {
                    showError(err.message);
                }
            });

            regionList.addEventListener('click', async function(e) {
                const btn = e.target.closest('button[data-action]');
                if (!btn) return;

                hideError();
                const id = btn.dataset.id;
                try {
                    if (btn.dataset.action === 'download') {
                        await api('/api/v1/regions/' + id + '/download', { method: 'POST' });
                    } else if (btn.dataset.action === 'cancel') {
                        await api('/api/v1/regions/' + id + '/cancel', { method: 'POST' });
                    } else if (btn.dataset.action === 'remove') {
                        await api('/api/v1/regions/' + id, { method: 'DELETE' });
                    }
                    await refresh();
                } catch (err) {
                    showError(err.message);
                }
            });

            cleanupBtn.addEventListener('click', async function() {
                hideError();
                try {
                    await api('/api/v1/cache/cleanup', { method: 'POST' });
                    await refresh();
                } catch (err) {
                    showError(err.message);
                }
            });

            clearBtn.addEventListener('click', async function() {
                if (!confirm('Alle Kacheln und Regionen wirklich löschen?')) return;
                hideError();
                try {
                    await api('/api/v1/cache', { method: 'DELETE' });
                    await refresh();
                } catch (err) {
                    showError(err.message);
                }
            });

            async function updateSettings(patch) {
                hideError();
                try {
                    await api('/api/v1/settings', {
                        method: 'PUT',
                        headers: { 'Content-Type': 'application/json' },
                        body: JSON.stringify(patch)
                    });
                } catch (err) {
                    showError(err.message);
                    await loadSettings();
                }
            }

            offlineMode.addEventListener('change', function() {
                updateSettings({ offline_mode: this.checked });
            });

            autoDownload.addEventListener('change', function() {
                updateSettings({ auto_download: this.checked });
            });

            maxCacheSize.addEventListener('change', function() {
                const value = parseFloat(this.value);
                if (!isNaN(value) && value > 0) {
                    updateSettings({ max_cache_size_mb: value }).then(loadCache);
                }
            });

            // Initial load
            refresh();
            loadSettings().catch(function(err) { showError(err.message); });
        })();
    </script>
</body>
</html>`

// handleFrontend serves the region management frontend.
func (s *Server) handleFrontend(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(frontendHTML))
}
