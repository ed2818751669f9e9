package knowledge

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// PptxParser PowerPoint文档解析器。
// 每张幻灯片的正文与演讲者备注分别产出单元，备注单元带独立的kind，
// 幻灯片标题并入定位符（如 "Slide 4: Results"）。
type PptxParser struct{}

// NewPptxParser 创建PPTX解析器
func NewPptxParser() *PptxParser {
	return &PptxParser{}
}

func (p *PptxParser) Supports(format Format) bool {
	return format == FormatPPTX
}

var slideFileRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func (p *PptxParser) Parse(data []byte, filename string) ([]StructuralUnit, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("解析PPTX失败: %w", err)
	}

	files := make(map[string]*zip.File, len(zr.File))
	var slideNums []int
	for _, f := range zr.File {
		files[f.Name] = f
		if m := slideFileRe.FindStringSubmatch(f.Name); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				slideNums = append(slideNums, n)
			}
		}
	}
	sort.Ints(slideNums)
	if len(slideNums) == 0 {
		return nil, fmt.Errorf("PPTX中没有幻灯片")
	}

	var units []StructuralUnit
	for _, n := range slideNums {
		slideXML, err := readZipFile(files[fmt.Sprintf("ppt/slides/slide%d.xml", n)])
		if err != nil {
			return nil, fmt.Errorf("读取幻灯片%d失败: %w", n, err)
		}
		title, lines, err := parseShapeText(slideXML)
		if err != nil {
			return nil, fmt.Errorf("解析幻灯片%d失败: %w", n, err)
		}

		locator := fmt.Sprintf("Slide %d", n)
		if title != "" {
			locator = fmt.Sprintf("Slide %d: %s", n, title)
		}
		if body := strings.Join(lines, "\n"); strings.TrimSpace(body) != "" {
			units = append(units, StructuralUnit{
				Ordinal: len(units),
				Locator: locator,
				Kind:    UnitKindBody,
				Text:    body,
			})
		}

		notesName := notesSlideTarget(files, n)
		if notesName == "" {
			continue
		}
		notesXML, err := readZipFile(files[notesName])
		if err != nil {
			return nil, fmt.Errorf("读取幻灯片%d备注失败: %w", n, err)
		}
		_, noteLines, err := parseShapeText(notesXML)
		if err != nil {
			return nil, fmt.Errorf("解析幻灯片%d备注失败: %w", n, err)
		}
		if notes := strings.Join(noteLines, "\n"); strings.TrimSpace(notes) != "" {
			units = append(units, StructuralUnit{
				Ordinal: len(units),
				Locator: fmt.Sprintf("Slide %d Notes", n),
				Kind:    UnitKindNotes,
				Text:    notes,
			})
		}
	}

	return units, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	if f == nil {
		return nil, fmt.Errorf("文件不存在")
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

type relationshipList struct {
	Relationships []struct {
		Type   string `xml:"Type,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// notesSlideTarget 通过幻灯片的关系文件定位对应的备注页
func notesSlideTarget(files map[string]*zip.File, slideNum int) string {
	relsData, err := readZipFile(files[fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", slideNum)])
	if err != nil {
		return ""
	}
	var rels relationshipList
	if err := xml.Unmarshal(relsData, &rels); err != nil {
		return ""
	}
	for _, rel := range rels.Relationships {
		if !strings.HasSuffix(rel.Type, "/notesSlide") {
			continue
		}
		target := path.Clean(path.Join("ppt/slides", rel.Target))
		if _, ok := files[target]; ok {
			return target
		}
	}
	return ""
}

// parseShapeText 从幻灯片XML中提取各形状的文本行与标题占位符文本。
// 页码、页脚、日期占位符不计入内容。
func parseShapeText(data []byte) (title string, lines []string, err error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		inText     bool
		phType     string
		shapeLines []string
		para       strings.Builder
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "sp":
				phType = ""
				shapeLines = shapeLines[:0]
			case "ph":
				for _, attr := range t.Attr {
					if attr.Name.Local == "type" {
						phType = attr.Value
					}
				}
			case "p":
				para.Reset()
			case "t":
				inText = true
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if s := strings.TrimSpace(para.String()); s != "" {
					shapeLines = append(shapeLines, s)
				}
				para.Reset()
			case "sp":
				switch phType {
				case "sldNum", "ftr", "dt":
					// 占位符装饰内容
				default:
					if (phType == "title" || phType == "ctrTitle") && title == "" && len(shapeLines) > 0 {
						title = shapeLines[0]
					}
					lines = append(lines, shapeLines...)
				}
				shapeLines = nil
			}
		}
	}

	// 形状之外的文本（如表格图形框）也收入内容
	lines = append(lines, shapeLines...)

	return title, lines, nil
}
