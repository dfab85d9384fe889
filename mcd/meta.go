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
	"sort"
	"strconv"
)

// NodeType - the closed set of record types in the metadata document
type NodeType int

const (
	NodeSlide NodeType = iota
	NodePanorama
	NodeAcquisitionROI
	NodeAcquisition
	NodeROIPoint
	NodeChannel
)

var nodeTypeName = map[NodeType]string{
	NodeSlide:          "Slide",
	NodePanorama:       "Panorama",
	NodeAcquisitionROI: "AcquisitionROI",
	NodeAcquisition:    "Acquisition",
	NodeROIPoint:       "ROIPoint",
	NodeChannel:        "AcquisitionChannel",
}

func (t NodeType) String() string {
	return nodeTypeName[t]
}

// Record types are built in dependency order so every parent exists in
// the index before anything references it. This also makes the graph
// acyclic by construction.
var nodeBuildOrder = []NodeType{
	NodeSlide,
	NodePanorama,
	NodeAcquisitionROI,
	NodeAcquisition,
	NodeROIPoint,
	NodeChannel,
}

// Foreign-key field names and the parent type each resolves to
var parentKeyType = map[string]NodeType{
	"SlideID":          NodeSlide,
	"PanoramaID":       NodePanorama,
	"AcquisitionROIID": NodeAcquisitionROI,
	"AcquisitionID":    NodeAcquisition,
}

// Property field names used by this package. Anything else stays as raw
// text in the property map for forward compatibility.
const (
	propID          = "ID"
	propOrderNumber = "OrderNumber"
)

// NodeRef - identifies a node by type and id. Parent/child links are
// stored as references resolved through the graph index, never as
// embedded pointers, so there is no ownership cycle.
type NodeRef struct {
	Type NodeType
	ID   int
}

// MetadataNode - one typed record from the metadata document
type MetadataNode struct {
	Type  NodeType
	ID    int
	Order int // OrderNumber, -1 when the record has none

	// Raw scalar fields. ID and OrderNumber are the only integer-typed
	// fields; everything else stays text.
	Properties map[string]string

	Parents  []NodeRef
	Children map[NodeType][]int
}

// Property - returns a property value, or fallback if absent
func (n *MetadataNode) Property(name string, fallback string) string {
	if val, ok := n.Properties[name]; ok {
		return val
	}
	return fallback
}

// MetadataGraph - the root node of the parsed document: owns every record
// and the global (type,id) index used to resolve parent references.
type MetadataGraph struct {
	// RawText - the located document text, cleaned, newlines stripped.
	// Persisted alongside the store so stitching runs never need the
	// container again.
	RawText string

	nodes     map[NodeRef]*MetadataNode
	typeOrder map[NodeType][]int // ids per type, document order
}

// Node - index lookup by (type,id)
func (g *MetadataGraph) Node(t NodeType, id int) *MetadataNode {
	return g.nodes[NodeRef{Type: t, ID: id}]
}

// NodesOfType - all nodes of one type in document order
func (g *MetadataGraph) NodesOfType(t NodeType) []*MetadataNode {
	result := []*MetadataNode{}
	for _, id := range g.typeOrder[t] {
		result = append(result, g.nodes[NodeRef{Type: t, ID: id}])
	}
	return result
}

// ChildrenOfType - a node's children of one type, sorted by OrderNumber
// (records without one keep document order, which sorts stably first)
func (g *MetadataGraph) ChildrenOfType(n *MetadataNode, t NodeType) []*MetadataNode {
	result := []*MetadataNode{}
	for _, id := range n.Children[t] {
		if child := g.Node(t, id); child != nil {
			result = append(result, child)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Order < result[j].Order
	})
	return result
}

// DecodeMetadataDocument - parses raw located document text into the
// typed metadata graph
func DecodeMetadataDocument(text string) (*MetadataGraph, error) {
	cleaned := CleanMetadataText(text)

	tree, err := ParseTree(cleaned)
	if err != nil {
		return nil, err
	}

	graph := &MetadataGraph{
		RawText:   newlineStripped(cleaned),
		nodes:     map[NodeRef]*MetadataNode{},
		typeOrder: map[NodeType][]int{},
	}

	for _, nodeType := range nodeBuildOrder {
		for _, record := range tree.ChildrenWithLabel(nodeType.String()) {
			if err := graph.addNode(nodeType, record.Fields()); err != nil {
				return nil, err
			}
		}
	}

	return graph, nil
}

func (g *MetadataGraph) addNode(nodeType NodeType, fields map[string]string) error {
	idText, ok := fields[propID]
	if !ok {
		return makeFormatError("%v record missing ID", nodeType)
	}
	id, err := strconv.Atoi(idText)
	if err != nil {
		return makeFormatError("%v record has non-integer ID %v", nodeType, idText)
	}

	node := &MetadataNode{
		Type:       nodeType,
		ID:         id,
		Order:      -1,
		Properties: fields,
		Children:   map[NodeType][]int{},
	}

	if orderText, ok := fields[propOrderNumber]; ok {
		order, err := strconv.Atoi(orderText)
		if err != nil {
			return makeFormatError("%v %v has non-integer OrderNumber %v", nodeType, id, orderText)
		}
		node.Order = order
	}

	// Resolve foreign keys to parents through the index, and record the
	// child link on each parent. Iterate the fixed key map through the
	// build order so link recording is deterministic.
	for _, parentType := range nodeBuildOrder {
		for key, keyType := range parentKeyType {
			if keyType != parentType {
				continue
			}
			refText, ok := fields[key]
			if !ok {
				continue
			}
			refID, err := strconv.Atoi(refText)
			if err != nil {
				return makeFormatError("%v %v has non-integer %v %v", nodeType, id, key, refText)
			}
			parent := g.Node(parentType, refID)
			if parent == nil {
				return makeFormatError("%v %v references missing %v %v", nodeType, id, parentType, refID)
			}
			node.Parents = append(node.Parents, NodeRef{Type: parentType, ID: refID})
			parent.Children[nodeType] = append(parent.Children[nodeType], id)
		}
	}

	ref := NodeRef{Type: nodeType, ID: id}
	if _, exists := g.nodes[ref]; exists {
		return makeFormatError("duplicate %v id %v", nodeType, id)
	}
	g.nodes[ref] = node
	g.typeOrder[nodeType] = append(g.typeOrder[nodeType], id)

	return nil
}

func newlineStripped(text string) string {
	result := make([]byte, 0, len(text))
	for i := 0; i < len(text); i++ {
		if text[i] != '\n' && text[i] != '\r' {
			result = append(result, text[i])
		}
	}
	return string(result)
}
