// =============================================================================
// Voucher XML Converter - Tally XML Parser
// =============================================================================
//
// This module turns the raw bytes of an accounting XML export into a node
// tree that the extractor can walk. It handles:
//   - UTF-16 exports (the accounting package's default), detected by BOM
//   - Declared legacy encodings (windows-1252, iso-8859-1, ...)
//   - Malformed documents, reported as *ParseError
//
// The tree itself is an etree document. Lookups follow ElementTree's
// findtext semantics: the first element matching a child path wins, and a
// matched element without text yields "".
//
// =============================================================================

package tallyxml

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrNoRoot is wrapped by ParseError when the input holds no root element.
var ErrNoRoot = errors.New("document has no root element")

// ErrJunkAfterRoot is wrapped by ParseError when an element follows the
// closed root element.
var ErrJunkAfterRoot = errors.New("junk after document element")

// ErrTextOutsideRoot is wrapped by ParseError when non-blank text appears
// before or after the root element.
var ErrTextOutsideRoot = errors.New("text outside document element")

// ParseError reports input that does not form a well-formed XML tree.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed XML document: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// =============================================================================
// TREE
// =============================================================================

// Tree is a parsed document.
type Tree struct {
	doc *etree.Document
}

// Root returns the document element.
func (t *Tree) Root() *etree.Element {
	return t.doc.Root()
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a complete XML document from r.
//
// RETURNS:
//   - The parsed tree.
//   - A *ParseError if the bytes are not a well-formed document.
func Parse(r io.Reader) (*Tree, error) {
	input, err := decodeBOM(r)
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	data, err := io.ReadAll(input)
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	if err := checkWellFormed(data); err != nil {
		return nil, &ParseError{Err: err}
	}

	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charsetReader

	if _, err := doc.ReadFrom(bytes.NewReader(data)); err != nil {
		return nil, &ParseError{Err: err}
	}

	if doc.Root() == nil {
		return nil, &ParseError{Err: ErrNoRoot}
	}

	return &Tree{doc: doc}, nil
}

// ParseBytes is Parse for an in-memory document.
func ParseBytes(data []byte) (*Tree, error) {
	return Parse(bytes.NewReader(data))
}

// ParseFile opens path and parses it. Failing to open the file is returned
// as a plain wrapped error, not a *ParseError.
func ParseFile(path string) (*Tree, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// decodeBOM transcodes input that starts with a byte order mark to UTF-8.
// Input without a BOM is passed through untouched.
func decodeBOM(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)

	head, err := br.Peek(3)
	if err != nil && err != io.EOF {
		return nil, err
	}

	switch {
	case bytes.HasPrefix(head, []byte{0xEF, 0xBB, 0xBF}),
		bytes.HasPrefix(head, []byte{0xFF, 0xFE}),
		bytes.HasPrefix(head, []byte{0xFE, 0xFF}):
		return transform.NewReader(br, unicode.BOMOverride(unicode.UTF8.NewDecoder())), nil
	}

	return br, nil
}

// checkWellFormed runs the strict token decoder over data. It rejects
// mismatched and unclosed elements, a second root element, and text outside
// the root, before the tree is built.
func checkWellFormed(data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charsetReader

	depth := 0
	rootClosed := false

	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if rootClosed {
				line, _ := dec.InputPos()
				return fmt.Errorf("%w (line %d)", ErrJunkAfterRoot, line)
			}
			depth++
		case xml.EndElement:
			depth--
			if depth == 0 {
				rootClosed = true
			}
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				line, _ := dec.InputPos()
				return fmt.Errorf("%w (line %d)", ErrTextOutsideRoot, line)
			}
		}
	}
}

// charsetReader is handed to the XML decoder for non UTF-8 declarations.
// UTF-16 input has already been transcoded by decodeBOM, so the declaration
// is stale by the time the decoder sees it.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "utf-16", "utf-16le", "utf-16be", "unicode":
		return input, nil
	}

	return charset.NewReaderLabel(label, input)
}

// =============================================================================
// LOOKUP HELPERS
// =============================================================================

// Descendants returns every element below el whose tag equals tag, in
// document order. el itself is never included.
func Descendants(el *etree.Element, tag string) []*etree.Element {
	var found []*etree.Element

	var walk func(*etree.Element)
	walk = func(node *etree.Element) {
		for _, child := range node.ChildElements() {
			if child.FullTag() == tag {
				found = append(found, child)
			}
			walk(child)
		}
	}
	walk(el)

	return found
}

// FindText returns the text of the first element matching path relative to
// el. found is false when no element matches.
func FindText(el *etree.Element, path etree.Path) (text string, found bool) {
	match := el.FindElementPath(path)
	if match == nil {
		return "", false
	}
	return match.Text(), true
}
