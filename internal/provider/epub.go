package provider

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"
)

// containerPath is the well-known location of container.xml in an ePub archive.
const containerPath = "META-INF/container.xml"

// EPUBFactory opens ePub documents.
type EPUBFactory struct{}

// Name returns "epub".
func (EPUBFactory) Name() string { return "epub" }

// CanHandle reports whether path looks like an ePub file.
func (EPUBFactory) CanHandle(path string) bool {
	return pathExt(path) == ".epub"
}

// Open opens the ePub at path and parses its container, package document,
// and navigation metadata. Chapter content is read lazily per chapter.
func (EPUBFactory) Open(filePath string) (Provider, error) {
	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: open epub archive: %v", ErrParse, err)
	}

	p := &epubProvider{archive: zr}
	if err := p.parse(); err != nil {
		zr.Close()
		return nil, err
	}
	return p, nil
}

// epubProvider reads chapters from the spine of an ePub archive.
// Chapter indices follow spine order.
type epubProvider struct {
	archive *zip.ReadCloser
	opfDir  string   // directory of the OPF, hrefs resolve relative to it
	spine   []string // archive paths of spine documents, in reading order
	toc     []TOCEntry
}

func (p *epubProvider) Name() string { return "epub" }

// ChapterCount returns the number of spine items.
func (p *epubProvider) ChapterCount(ctx context.Context) (int, error) {
	if len(p.spine) == 0 {
		return 0, fmt.Errorf("%w: epub has an empty spine", ErrParse)
	}
	return len(p.spine), nil
}

// ChapterContent reads and extracts the spine document at index i.
func (p *epubProvider) ChapterContent(ctx context.Context, i int) (Content, error) {
	if i < 0 || i >= len(p.spine) {
		return Content{}, fmt.Errorf("%w: chapter %d of %d", ErrInvalidChapter, i, len(p.spine))
	}
	data, err := p.readFile(p.spine[i])
	if err != nil {
		return Content{}, fmt.Errorf("%w: read chapter %d (%s): %v", ErrParse, i, p.spine[i], err)
	}

	text, err := extractText(data)
	if err != nil {
		return Content{}, fmt.Errorf("%w: extract chapter %d text: %v", ErrParse, i, err)
	}
	body, err := extractBodyHTML(data)
	if err != nil {
		// A chapter with unparseable markup can still be paginated by
		// its text rendition.
		body = ""
	}
	return Content{Text: text, HTML: body}, nil
}

// TableOfContents returns the parsed NCX navigation entries.
func (p *epubProvider) TableOfContents(ctx context.Context) ([]TOCEntry, error) {
	return p.toc, nil
}

// Close closes the underlying archive.
func (p *epubProvider) Close() error {
	return p.archive.Close()
}

// parse locates the OPF via container.xml, reads the manifest and spine,
// and parses NCX navigation when present.
func (p *epubProvider) parse() error {
	opfPath, err := p.parseContainer()
	if err != nil {
		return err
	}
	p.opfDir = path.Dir(opfPath)
	if p.opfDir == "." {
		p.opfDir = ""
	}

	data, err := p.readFile(opfPath)
	if err != nil {
		return fmt.Errorf("%w: read package document %s: %v", ErrParse, opfPath, err)
	}

	var pkg opfPackage
	if err := xml.Unmarshal(data, &pkg); err != nil {
		return fmt.Errorf("%w: parse package document: %v", ErrParse, err)
	}

	// Manifest id -> href.
	hrefs := make(map[string]string, len(pkg.Manifest.Items))
	var ncxHref string
	for _, item := range pkg.Manifest.Items {
		hrefs[item.ID] = item.Href
		if item.MediaType == "application/x-dtbncx+xml" {
			ncxHref = item.Href
		}
	}

	// Spine order defines chapter order. Non-linear items are skipped.
	spineIndex := make(map[string]int) // href -> chapter index
	for _, ref := range pkg.Spine.ItemRefs {
		if ref.Linear == "no" {
			continue
		}
		href, ok := hrefs[ref.IDRef]
		if !ok {
			continue
		}
		resolved := p.resolveHref(href)
		spineIndex[resolved] = len(p.spine)
		p.spine = append(p.spine, resolved)
	}
	if len(p.spine) == 0 {
		return fmt.Errorf("%w: epub spine references no readable documents", ErrParse)
	}

	if ncxHref != "" {
		p.toc = p.parseNCX(p.resolveHref(ncxHref), spineIndex)
	}
	return nil
}

// parseContainer returns the OPF path from META-INF/container.xml,
// falling back to scanning the archive for a .opf entry.
func (p *epubProvider) parseContainer() (string, error) {
	data, err := p.readFile(containerPath)
	if err == nil {
		var c epubContainer
		if err := xml.Unmarshal(data, &c); err != nil {
			return "", fmt.Errorf("%w: parse container.xml: %v", ErrParse, err)
		}
		for _, rf := range c.RootFiles {
			if rf.FullPath != "" {
				return rf.FullPath, nil
			}
		}
	}

	// Fallback: first .opf entry anywhere in the archive.
	for _, f := range p.archive.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".opf") {
			return f.Name, nil
		}
	}
	return "", fmt.Errorf("%w: no package document found", ErrParse)
}

// parseNCX extracts flat TOC entries from the NCX document, mapping each
// navPoint to its spine chapter. Entries pointing outside the spine are
// dropped. NCX parse failures degrade to an empty TOC rather than failing
// the whole document.
func (p *epubProvider) parseNCX(ncxPath string, spineIndex map[string]int) []TOCEntry {
	data, err := p.readFile(ncxPath)
	if err != nil {
		return nil
	}
	var ncx ncxDocument
	if err := xml.Unmarshal(data, &ncx); err != nil {
		return nil
	}

	ncxDir := path.Dir(ncxPath)
	if ncxDir == "." {
		ncxDir = ""
	}

	var entries []TOCEntry
	var walk func(points []ncxNavPoint)
	walk = func(points []ncxNavPoint) {
		for _, np := range points {
			href := np.Content.Src
			if i := strings.IndexByte(href, '#'); i >= 0 {
				href = href[:i]
			}
			resolved := path.Clean(path.Join(ncxDir, href))
			if chapter, ok := spineIndex[resolved]; ok {
				entries = append(entries, TOCEntry{
					Title:   strings.TrimSpace(np.Label.Text),
					Chapter: chapter,
				})
			}
			walk(np.Children)
		}
	}
	walk(ncx.NavMap.Points)
	return entries
}

// resolveHref resolves a manifest href against the OPF directory.
func (p *epubProvider) resolveHref(href string) string {
	if p.opfDir == "" {
		return path.Clean(href)
	}
	return path.Clean(path.Join(p.opfDir, href))
}

// readFile reads a named entry from the archive.
func (p *epubProvider) readFile(name string) ([]byte, error) {
	for _, f := range p.archive.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("entry %q not found in archive", name)
}

// epubContainer models META-INF/container.xml.
type epubContainer struct {
	XMLName   xml.Name `xml:"container"`
	RootFiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

// opfPackage models the parts of the OPF package document we need:
// the manifest (id -> href) and the spine (reading order).
type opfPackage struct {
	XMLName  xml.Name `xml:"package"`
	Manifest struct {
		Items []struct {
			ID        string `xml:"id,attr"`
			Href      string `xml:"href,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		ItemRefs []struct {
			IDRef  string `xml:"idref,attr"`
			Linear string `xml:"linear,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

// ncxDocument models the NCX navigation document.
type ncxDocument struct {
	XMLName xml.Name `xml:"ncx"`
	NavMap  struct {
		Points []ncxNavPoint `xml:"navPoint"`
	} `xml:"navMap"`
}

type ncxNavPoint struct {
	Label struct {
		Text string `xml:"text"`
	} `xml:"navLabel"`
	Content struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []ncxNavPoint `xml:"navPoint"`
}

func pathExt(p string) string {
	return path.Ext(strings.ToLower(p))
}
