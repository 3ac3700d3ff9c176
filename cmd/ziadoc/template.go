package main

const htmlTemplate = `<!DOCTYPE html>
<html lang="fr">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{if .Title}}{{.Title}} - {{end}}{{.Meta.Title}}</title>
    <style>
        :root {
            --bg-main: #101214; --bg-sidebar: #171a1d; --bg-card: #1d2125;
            --bg-input: #262a2f; --border: #30353b; --accent: #2f9e8f;
            --text: #ececec; --text-sec: #9aa1a8; --text-muted: #646b72;
            --s-kwd: #c678dd; --s-fn: #61afef; --s-arg: #d19a66;
            --s-ret: #56b6c2; --s-punct: #abb2bf;
        }
        * { box-sizing: border-box; }
        body { margin: 0; font-family: system-ui, sans-serif; background: var(--bg-main); color: var(--text); display: flex; height: 100vh; overflow: hidden; }
        a { text-decoration: none; color: inherit; }
        code, .sig, .p-name, .idx-link, .sr-name { font-family: ui-monospace, monospace; }

        aside { width: 260px; background: var(--bg-sidebar); border-right: 1px solid var(--border); display: flex; flex-direction: column; flex-shrink: 0; }
        .brand { padding: 20px; border-bottom: 1px solid var(--border); }
        .brand h1 { margin: 0; font-size: 1.1rem; }
        .search-container { padding: 15px; position: relative; }
        #search { width: 100%; background: var(--bg-input); border: 1px solid var(--border); color: #fff; padding: 8px 12px; border-radius: 6px; outline: none; }
        #search:focus { border-color: var(--accent); }
        .search-results { position: absolute; top: 100%; left: 10px; right: 10px; background: var(--bg-card); border: 1px solid var(--border); border-radius: 6px; max-height: 400px; overflow-y: auto; display: none; }
        .search-results.visible { display: block; }
        .sr-item { padding: 10px 12px; border-bottom: 1px solid var(--border); cursor: pointer; }
        .sr-item:hover { background: var(--bg-input); }
        .sr-type { font-size: 0.65rem; text-transform: uppercase; color: var(--text-sec); margin-left: 8px; }
        .sr-desc { font-size: 0.8rem; color: var(--text-sec); white-space: nowrap; overflow: hidden; text-overflow: ellipsis; }
        .sr-empty { padding: 15px; text-align: center; color: var(--text-muted); }

        .nav-scroll { flex: 1; overflow-y: auto; padding: 10px 0; }
        .nav-header { font-size: 0.75rem; font-weight: 700; color: var(--text-muted); text-transform: uppercase; margin: 25px 20px 8px 20px; }
        .nav-item { display: block; padding: 6px 20px; color: var(--text-sec); border-left: 2px solid transparent; }
        .nav-item.active { color: #fff; border-left-color: var(--accent); }

        main { flex: 1; overflow-y: auto; }
        .container { max-width: 900px; margin: 0 auto; padding: 40px 60px; }
        .home-grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(260px, 1fr)); gap: 20px; margin-top: 30px; }
        .home-card { background: var(--bg-card); border: 1px solid var(--border); border-radius: 8px; padding: 20px; }
        .home-card:hover { border-color: var(--accent); }
        .hc-badge { font-size: 0.65rem; text-transform: uppercase; font-weight: 700; color: var(--accent); }
        .hc-title { display: block; font-size: 1.2rem; font-weight: 600; margin: 10px 0 5px 0; }
        .hc-desc { font-size: 0.9rem; color: var(--text-sec); }

        .page-header { border-bottom: 1px solid var(--border); padding-bottom: 20px; margin-bottom: 40px; }
        .page-title { font-size: 2.2rem; margin: 0 0 10px 0; }
        .page-desc { color: var(--text-sec); }
        .doc-card { background: var(--bg-card); border: 1px solid var(--border); border-radius: 8px; margin-bottom: 30px; }
        .card-head { padding: 12px 20px; border-bottom: 1px solid var(--border); }
        .card-body { padding: 20px; }
        .desc-text { margin-bottom: 20px; line-height: 1.6; }
        .param-tbl { width: 100%; border-collapse: collapse; }
        .param-tbl td { padding: 5px 0; vertical-align: top; }
        .p-name { width: 120px; color: var(--s-arg); }
        .p-desc { color: var(--text-sec); }
        .lbl { font-size: 0.75rem; font-weight: 700; color: var(--text-muted); text-transform: uppercase; margin: 15px 0 8px 0; display: block; }
        .ret-type { color: var(--s-ret); }
        .idx-tbl { width: 100%; border-collapse: collapse; margin-bottom: 30px; border: 1px solid var(--border); }
        .idx-tbl th { text-align: left; background: var(--bg-input); padding: 10px 15px; color: var(--text-muted); }
        .idx-tbl td { padding: 10px 15px; border-top: 1px solid var(--border); color: var(--text-sec); }
        .idx-link { color: var(--s-fn); }

        .kwd { color: var(--s-kwd); } .fn { color: var(--s-fn); font-weight: 600; }
        .arg { color: var(--s-arg); } .ret { color: var(--s-ret); } .punct { color: var(--s-punct); }
    </style>
</head>
<body>
    <aside>
        <div class="brand"><h1><a href="index.html">{{.Meta.Title}}</a></h1></div>
        <div class="search-container">
            <input type="text" id="search" placeholder="Rechercher (ex. racine)...">
            <div id="searchResults" class="search-results"></div>
        </div>
        <nav class="nav-scroll">
            <a href="index.html" class="nav-item {{if .IsHome}}active{{end}}">Accueil</a>
            {{range .Meta.Nav}}
                <div class="nav-header">{{.Title}}</div>
                {{range .Items}}
                    <a href="{{.Link}}" class="nav-item {{if .IsActive}}active{{end}}">{{.Label}}</a>
                {{end}}
            {{end}}
        </nav>
    </aside>

    <main>
        <div class="container">
            {{if .IsHome}}
                <div class="page-header">
                    <h1 class="page-title">{{.Meta.Title}}</h1>
                    <p class="page-desc">Générée le {{.Meta.GeneratedAt}}</p>
                </div>
                <div class="home-grid">
                    {{range .HomeStats}}
                    <a href="{{.Link}}" class="home-card">
                        <span class="hc-badge">{{.Type}}</span>
                        <span class="hc-title">{{.Title}}</span>
                        <span class="hc-desc">{{.Desc}}</span>
                    </a>
                    {{end}}
                </div>
            {{else}}
                <div class="page-header">
                    <h1 class="page-title">{{.Category.Name}}</h1>
                    {{if .Category.Description}}<p class="page-desc">{{.Category.Description}}</p>{{end}}
                </div>

                <table class="idx-tbl">
                    <thead><tr><th>Nom</th><th>Résumé</th></tr></thead>
                    <tbody>
                        {{range .Category.Items}}
                        <tr>
                            <td><a href="#{{.ID}}" class="idx-link">{{.Name}}</a></td>
                            <td>{{.Summary}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>

                {{range .Category.Items}}
                <div id="{{.ID}}" class="doc-card">
                    <div class="card-head"><div class="sig">{{.Signature}}</div></div>
                    <div class="card-body">
                        <div class="desc-text">{{.Description}}</div>
                        {{if .Params}}
                            <span class="lbl">Paramètres</span>
                            <table class="param-tbl">
                                {{range .Params}}<tr><td class="p-name">{{.Name}}</td><td class="p-desc">{{.Desc}}</td></tr>{{end}}
                            </table>
                        {{end}}
                        {{if .Returns}}
                            <span class="lbl">Retour</span>
                            <div class="ret-type">{{.Returns}}</div>
                        {{end}}
                    </div>
                </div>
                {{end}}
            {{end}}
        </div>
    </main>

    <script>
        const searchIndex = {{.Meta.SearchIndexJSON}};
        const searchInput = document.getElementById('search');
        const resultsBox = document.getElementById('searchResults');

        function scoreItem(item, term) {
            const name = item.l.toLowerCase();
            if (name === term) return 100;
            if (name.startsWith(term)) return 50;
            if (name.includes(term)) return 10;
            if ((item.p || '').toLowerCase().includes(term)) return 5;
            return 0;
        }

        function performSearch() {
            const term = searchInput.value.toLowerCase().trim();
            if (term.length < 1) {
                resultsBox.classList.remove('visible');
                return;
            }
            const matches = searchIndex
                .map(item => ({ item, score: scoreItem(item, term) }))
                .filter(res => res.score > 0)
                .sort((a, b) => b.score - a.score)
                .slice(0, 10);

            resultsBox.innerHTML = '';
            if (matches.length === 0) {
                resultsBox.innerHTML = '<div class="sr-empty">Aucun résultat</div>';
            }
            matches.forEach(m => {
                const div = document.createElement('div');
                div.className = 'sr-item';
                div.onclick = () => { window.location.href = m.item.u; };
                const name = document.createElement('span');
                name.className = 'sr-name';
                name.textContent = m.item.l;
                const kind = document.createElement('span');
                kind.className = 'sr-type';
                kind.textContent = m.item.t;
                const desc = document.createElement('div');
                desc.className = 'sr-desc';
                desc.textContent = m.item.d || '';
                div.append(name, kind, desc);
                resultsBox.appendChild(div);
            });
            resultsBox.classList.add('visible');
        }

        let debounce;
        searchInput.addEventListener('input', () => {
            clearTimeout(debounce);
            debounce = setTimeout(performSearch, 100);
        });
        document.addEventListener('click', (e) => {
            if (!searchInput.contains(e.target) && !resultsBox.contains(e.target)) {
                resultsBox.classList.remove('visible');
            }
        });
    </script>
</body>
</html>`
