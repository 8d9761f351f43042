package tree

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Mode is a Newick parser state.
type Mode int

// Parser states.
const (
	NORMAL Mode = iota
	LENGTH
	CLASS
)

// IsSpecial checks if the rune is a Newick control character.
func IsSpecial(c rune) bool {
	switch c {
	case '(', ')', ':', '#', ';', ',':
		return true
	}
	return false
}

// NewickSplit is a bufio.SplitFunc splitting Newick into tokens.
func NewickSplit(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	// Skip leading spaces; and return 1-char tokens.
	for width := 0; start < len(data); start += width {
		var r rune
		r, width = utf8.DecodeRune(data[start:])
		if IsSpecial(r) {
			return start + width, data[start : start+width], nil
		}
		if !unicode.IsSpace(r) {
			break
		}
	}
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	// Scan until space or special character.
	for width, i := 0, start; i < len(data); i += width {
		var r rune
		r, width = utf8.DecodeRune(data[i:])
		if unicode.IsSpace(r) || IsSpecial(r) {
			return i, data[start:i], nil
		}
	}
	// If we're at EOF, we have a final, non-empty, non-terminated word. Return it.
	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	// Request more data.
	return 0, nil, nil
}

// ParseNewickString parses a tree from a string.
func ParseNewickString(s string) (*Tree, error) {
	return ParseNewick(strings.NewReader(s))
}

// ParseNewick reads a tree in Newick format. Branch lengths are
// converted to node heights, the most distant leaf gets height 0.
func ParseNewick(rd io.Reader) (tree *Tree, err error) {
	scanner := bufio.NewScanner(rd)

	scanner.Split(NewickSplit)

	nodeId := 0
	leafId := 0

	root := NewNode(nil, nodeId)
	node := root
	nodeId++
	// branch lengths by node id
	lengths := []float64{0}

	mode := NORMAL

Scan:
	for scanner.Scan() {
		text := scanner.Text()
		switch text {
		case "(":
			subNode := NewNode(nil, nodeId)
			nodeId++
			lengths = append(lengths, 0)
			node.AddChild(subNode)
			node = subNode

		case ",":
			if node.Parent == nil {
				return nil, errors.New("top level comma mismatch")
			}
			subNode := NewNode(nil, nodeId)
			nodeId++
			lengths = append(lengths, 0)

			node.Parent.AddChild(subNode)
			node = subNode

		case ")":
			if node.Parent == nil {
				return nil, errors.New("brackets mismatch")
			}
			node = node.Parent
		case "#":
			mode = CLASS
		case ":":
			mode = LENGTH
		case ";":
			break Scan
		default:
			switch mode {
			case LENGTH:
				l, err := strconv.ParseFloat(text, 64)
				if err != nil {
					return nil, err
				}
				if l < 0 {
					return nil, errors.New("negative branch length")
				}
				lengths[node.Id] = l
				mode = NORMAL
			case CLASS:
				cl, err := strconv.ParseInt(text, 0, 0)
				if err != nil {
					return nil, err
				}
				node.Class = int(cl)
				mode = NORMAL
			default:
				node.LeafId = leafId
				leafId++
				node.Name = text
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if node != root {
		return nil, errors.New("brackets mismatch")
	}

	setHeights(root, lengths)
	return fromRoot(root), nil
}

// setHeights converts branch lengths to heights.
func setHeights(root *Node, lengths []float64) {
	depth := make([]float64, len(lengths))
	maxDepth := 0.0
	var walk func(*Node, float64)
	walk = func(node *Node, d float64) {
		depth[node.Id] = d
		if d > maxDepth {
			maxDepth = d
		}
		for _, child := range node.childNodes {
			walk(child, d+lengths[child.Id])
		}
	}
	walk(root, 0)
	var set func(*Node)
	set = func(node *Node) {
		node.Height = maxDepth - depth[node.Id]
		for _, child := range node.childNodes {
			set(child)
		}
	}
	set(root)
}
