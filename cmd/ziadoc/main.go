package main

import (
	"encoding/json"
	"fmt"
	"html/template"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"ziavm/zia"

	"github.com/tliron/commonlog"
	"github.com/urfave/cli"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("ziadoc")

type SearchItem struct {
	Label  string `json:"l"`
	Parent string `json:"p"`
	Type   string `json:"t"`
	Link   string `json:"u"`
	Desc   string `json:"d"`
}

type SiteMeta struct {
	Title           string
	GeneratedAt     string
	Nav             []NavGroup
	SearchIndexJSON template.JS
}

type NavGroup struct {
	Title string
	Items []NavItem
}

type NavItem struct {
	Label    string
	Link     string
	IsActive bool
}

type PageData struct {
	Meta      SiteMeta
	Title     string
	PageTitle string
	File      string

	IsHome     bool
	IsCategory bool

	HomeStats []HomeStat
	Category  Category
}

type HomeStat struct {
	Type  string
	Title string
	Desc  string
	Link  string
}

type Category struct {
	Name        string
	Description string
	Type        string
	Items       []DocItem
}

type DocItem struct {
	ID          string
	Name        string
	Signature   template.HTML
	Summary     string
	Description string
	Params      []ParamDetail
	Returns     string
}

type ParamDetail struct {
	Name string
	Desc string
}

// keywordDocs describes each keyword on the keyword page.
var keywordDocs = map[string]string{
	"si":        "Exécute un bloc si la condition est vraie.",
	"sinon":     "Branche exécutée quand la condition du si est fausse.",
	"tantque":   "Répète un bloc tant que la condition est vraie.",
	"pour":      "Boucle avec initialisation, condition et incrément.",
	"selon":     "Compare une valeur à une suite de cas.",
	"cas":       "Un cas d'un selon. L'exécution continue dans le cas suivant sans quitter.",
	"defaut":    "Cas d'un selon exécuté quand aucun autre ne correspond.",
	"quitter":   "Sort de la boucle ou du selon englobant.",
	"continuer": "Passe à l'itération suivante de la boucle englobante.",
	"fonction":  "Déclare une fonction.",
	"retourner": "Renvoie une valeur depuis une fonction. Aussi écrit retourne.",
	"var":       "Déclare une variable.",
	"vrai":      "Le booléen vrai.",
	"faux":      "Le booléen faux.",
	"nul":       "L'absence de valeur.",
	"afficher":  "Écrit une ou plusieurs valeurs suivies d'un saut de ligne.",
	"et":        "Et logique, court-circuité.",
	"ou":        "Ou logique, court-circuité.",
}

func main() {
	var outputDir string

	app := cli.NewApp()
	app.Name = "ziadoc"
	app.Usage = "generate HTML reference pages for the Zia natives or for a script"
	app.ArgsUsage = "[script.zia]"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "output, o",
			Value:       "docs",
			Usage:       "output directory",
			Destination: &outputDir,
		},
	}
	app.Action = func(c *cli.Context) error {
		commonlog.Configure(1, nil)

		var meta SiteMeta
		var pages []PageData
		if c.NArg() == 0 {
			meta, pages = prepareBuiltinPages()
		} else {
			var err error
			meta, pages, err = prepareScriptPages(c.Args().First())
			if err != nil {
				return cli.NewExitError(err.Error(), 1)
			}
		}
		return writePages(outputDir, meta, pages)
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func writePages(outputDir string, meta SiteMeta, pages []PageData) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}
	t, err := template.New("zia").Parse(htmlTemplate)
	if err != nil {
		return err
	}

	for _, p := range pages {
		p.Meta = setActiveNav(meta, p.Title)

		fullPath := filepath.Join(outputDir, p.File)
		f, err := os.Create(fullPath)
		if err != nil {
			log.Errorf("creating %s: %v", fullPath, err)
			continue
		}
		if err := t.Execute(f, p); err != nil {
			log.Errorf("rendering %s: %v", fullPath, err)
		}
		f.Close()
		log.Infof("generated %s", fullPath)
	}
	return nil
}

func prepareBuiltinPages() (SiteMeta, []PageData) {
	meta := SiteMeta{
		Title:       "Bibliothèque Zia",
		GeneratedAt: time.Now().Format("02/01/2006"),
	}

	var searchItems []SearchItem

	names := slices.Sorted(maps.Keys(zia.Builtins))
	natives := buildCategory("Fonctions natives", "global", "Fonctions disponibles dans tout programme.", names, zia.BuiltinDocs)
	for _, item := range natives.Items {
		searchItems = append(searchItems, SearchItem{
			Label: item.Name, Type: "fn", Link: "globals.html#" + item.ID, Desc: item.Summary,
		})
	}

	keywords := Category{Name: "Mots-clés", Type: "keyword", Description: "Mots réservés du langage."}
	for _, kw := range zia.GetAllKeywords() {
		desc := keywordDocs[kw]
		keywords.Items = append(keywords.Items, DocItem{
			ID:          slugify(kw),
			Name:        kw,
			Signature:   template.HTML(`<span class="kwd">` + template.HTMLEscapeString(kw) + `</span>`),
			Summary:     extractSummary(desc),
			Description: desc,
		})
		searchItems = append(searchItems, SearchItem{
			Label: kw, Type: "mot", Link: "keywords.html#" + slugify(kw), Desc: extractSummary(desc),
		})
	}

	meta.Nav = []NavGroup{{
		Title: "Référence",
		Items: []NavItem{
			{Label: natives.Name, Link: "globals.html"},
			{Label: keywords.Name, Link: "keywords.html"},
		},
	}}
	jsonBytes, _ := json.Marshal(searchItems)
	meta.SearchIndexJSON = template.JS(jsonBytes)

	stats := []HomeStat{
		{Type: "Natives", Title: natives.Name, Desc: natives.Description, Link: "globals.html"},
		{Type: "Langage", Title: keywords.Name, Desc: keywords.Description, Link: "keywords.html"},
	}
	return meta, []PageData{
		{Title: "Accueil", File: "index.html", IsHome: true, HomeStats: stats},
		{Title: natives.Name, PageTitle: natives.Name, File: "globals.html", IsCategory: true, Category: natives},
		{Title: keywords.Name, PageTitle: keywords.Name, File: "keywords.html", IsCategory: true, Category: keywords},
	}
}

func prepareScriptPages(inputFile string) (SiteMeta, []PageData, error) {
	source, err := os.ReadFile(inputFile)
	if err != nil {
		return SiteMeta{}, nil, err
	}

	scriptName := filepath.Base(inputFile)
	docs := scriptFunctions(scriptName, string(source))
	names := slices.Sorted(maps.Keys(docs))

	cat := buildCategory(scriptName, "script", "Fonctions déclarées au niveau supérieur.", names, docs)
	page := PageData{
		Title:      scriptName,
		PageTitle:  "Script : " + scriptName,
		File:       "index.html",
		IsCategory: true,
		Category:   cat,
	}

	meta := SiteMeta{
		Title:       "Documentation du script",
		GeneratedAt: time.Now().Format("02/01/2006"),
	}
	meta.Nav = append(meta.Nav, NavGroup{
		Title: "Scripts",
		Items: []NavItem{{Label: scriptName, Link: "index.html", IsActive: true}},
	})

	var searchItems []SearchItem
	for _, item := range cat.Items {
		searchItems = append(searchItems, SearchItem{
			Label: item.Name, Parent: scriptName, Type: "fn", Link: "index.html#" + item.ID, Desc: item.Summary,
		})
	}
	jsonBytes, _ := json.Marshal(searchItems)
	meta.SearchIndexJSON = template.JS(jsonBytes)

	return meta, []PageData{page}, nil
}

// scriptFunctions finds the top-level function declarations of a script.
// The // comment lines right above a declaration become its description.
func scriptFunctions(name, source string) map[string]*zia.NativeDoc {
	lines := strings.Split(source, "\n")
	tokens := zia.NewLexer(name, source).Tokenize()
	docs := make(map[string]*zia.NativeDoc)

	depth := 0
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch tok.Kind {
		case zia.TokenLCurlyBrace:
			depth++
			continue
		case zia.TokenRCurlyBrace:
			depth = max(depth-1, 0)
			continue
		case zia.TokenFonction:
		default:
			continue
		}
		if depth != 0 || i+2 >= len(tokens) || tokens[i+1].Kind != zia.TokenIdent || tokens[i+2].Kind != zia.TokenLParen {
			continue
		}

		doc := &zia.NativeDoc{Description: leadingComment(lines, tok.Loc.Line)}
		j := i + 3
		for ; j < len(tokens) && tokens[j].Kind != zia.TokenRParen && tokens[j].Kind != zia.TokenEOF; j++ {
			if tokens[j].Kind == zia.TokenIdent {
				doc.Params = append(doc.Params, zia.ParamDoc{Name: tokens[j].Value})
			}
		}
		docs[tokens[i+1].Value] = doc
		i = j
	}
	return docs
}

func leadingComment(lines []string, line int) string {
	var parts []string
	for n := line - 2; n >= 0; n-- {
		text := strings.TrimSpace(lines[n])
		if !strings.HasPrefix(text, "//") {
			break
		}
		parts = append(parts, strings.TrimSpace(strings.TrimPrefix(text, "//")))
	}
	slices.Reverse(parts)
	return strings.Join(parts, " ")
}

func setActiveNav(meta SiteMeta, currentTitle string) SiteMeta {
	newNav := make([]NavGroup, len(meta.Nav))
	for i, g := range meta.Nav {
		newGroup := NavGroup{Title: g.Title, Items: make([]NavItem, len(g.Items))}
		for j, item := range g.Items {
			item.IsActive = item.Label == currentTitle
			newGroup.Items[j] = item
		}
		newNav[i] = newGroup
	}
	meta.Nav = newNav
	return meta
}

func buildCategory(name, catType, desc string, funcNames []string, docs map[string]*zia.NativeDoc) Category {
	cat := Category{Name: name, Type: catType, Description: desc}
	for _, fname := range funcNames {
		cat.Items = append(cat.Items, buildDocItem(fname, docs[fname]))
	}
	return cat
}

func buildDocItem(name string, doc *zia.NativeDoc) DocItem {
	item := DocItem{Name: name, ID: slugify(name)}
	if doc != nil {
		item.Description = doc.Description
		item.Returns = doc.Returns
		item.Summary = extractSummary(doc.Description)
		for _, p := range doc.Params {
			item.Params = append(item.Params, ParamDetail{Name: p.Name, Desc: p.Description})
		}
	}
	item.Signature = buildSignature(name, item.Params, item.Returns)
	return item
}

func extractSummary(desc string) string {
	if idx := strings.Index(desc, ". "); idx != -1 {
		return desc[:idx+1]
	}
	return desc
}

func buildSignature(name string, params []ParamDetail, ret string) template.HTML {
	var sb strings.Builder
	sb.WriteString(`<span class="kwd">fonction</span> `)
	fmt.Fprintf(&sb, `<span class="fn">%s</span>`, template.HTMLEscapeString(name))
	sb.WriteString(`<span class="punct">(</span>`)
	for i, p := range params {
		if i > 0 {
			sb.WriteString(`<span class="punct">, </span>`)
		}
		fmt.Fprintf(&sb, `<span class="arg">%s</span>`, template.HTMLEscapeString(p.Name))
	}
	sb.WriteString(`<span class="punct">)</span>`)
	if ret != "" {
		fmt.Fprintf(&sb, ` <span class="punct">-&gt;</span> <span class="ret">%s</span>`, template.HTMLEscapeString(ret))
	}
	return template.HTML(sb.String())
}

func slugify(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "-"))
}
