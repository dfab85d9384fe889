// Licensed to NASA JPL under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. NASA JPL licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package mcd

import (
	"encoding/xml"
	"io"
	"regexp"
	"strings"
)

// The metadata document is schema-less as far as we're concerned: record
// types and field names vary between instrument software versions, so it
// is parsed into a generic label/attribute tree first and typed later.

// TreeNode - one element of the parsed metadata document
type TreeNode struct {
	Label    string
	Text     string
	Children []*TreeNode
}

// ChildrenWithLabel - all direct children carrying the given label, in
// document order
func (n *TreeNode) ChildrenWithLabel(label string) []*TreeNode {
	result := []*TreeNode{}
	for _, child := range n.Children {
		if child.Label == label {
			result = append(result, child)
		}
	}
	return result
}

// Fields - leaf children as a label->text map. Repeated labels keep the
// last occurrence, matching how the instrument writes records.
func (n *TreeNode) Fields() map[string]string {
	fields := map[string]string{}
	for _, child := range n.Children {
		if len(child.Children) == 0 {
			fields[child.Label] = child.Text
		}
	}
	return fields
}

var xmlnsAttrRe = regexp.MustCompile(`\sxmlns="[^"]+"`)

// CleanMetadataText - strips the two known namespace-prefix artifacts,
// embedded null bytes and the namespace declaration from the raw document
// text. Instrument schemas frequently carry broken namespaces, so this
// happens before any XML parsing.
func CleanMetadataText(text string) string {
	text = strings.ReplaceAll(text, "diffgr:", "")
	text = strings.ReplaceAll(text, "msdata:", "")
	text = strings.ReplaceAll(text, "\x00", "")
	text = xmlnsAttrRe.ReplaceAllString(text, "")
	return text
}

// ParseTree - parses cleaned metadata text into a generic tree. The
// returned root is the document element itself.
func ParseTree(text string) (*TreeNode, error) {
	decoder := xml.NewDecoder(strings.NewReader(text))
	decoder.Strict = false

	var root *TreeNode
	stack := []*TreeNode{}

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, makeFormatError("malformed metadata document: %v", err)
		}

		switch tok := token.(type) {
		case xml.StartElement:
			node := &TreeNode{Label: tok.Name.Local}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, node)
			} else if root == nil {
				root = node
			} else {
				return nil, makeFormatError("multiple document elements in metadata")
			}
			stack = append(stack, node)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, makeFormatError("unbalanced element %v in metadata", tok.Name.Local)
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += strings.TrimSpace(string(tok))
			}
		}
	}

	if root == nil {
		return nil, makeFormatError("empty metadata document")
	}
	if len(stack) != 0 {
		return nil, makeFormatError("truncated metadata document")
	}

	return root, nil
}
