// Package topology models a synthetic network graph and the shortest-path
// latency between its nodes, used by cmd/flowgen to synthesize realistic
// flow samples for the JSON test channel. Adapted from the teacher's
// pkg/routing optimizer, trimmed to the single-path Dijkstra case: flowgen
// only needs one representative path's latency per host pair, not the
// K-shortest-path ECMP search the teacher's routing package also offered.
package topology

import (
	"container/heap"
	"fmt"
	"math"
)

// Edge is a directed link between two hosts.
type Edge struct {
	From        string
	To          string
	LatencyMS   float64
	Utilization float64
	PacketLoss  float64
	Cost        float64
}

// Node is a host in the synthetic topology.
type Node struct {
	ID      string
	Address string
}

// Graph is an adjacency-map network topology.
type Graph struct {
	Nodes map[string]*Node
	Edges map[string]map[string]*Edge
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes: make(map[string]*Node),
		Edges: make(map[string]map[string]*Edge),
	}
}

// AddNode registers a host under id with the given synthetic address.
func (g *Graph) AddNode(id, address string) {
	g.Nodes[id] = &Node{ID: id, Address: address}
}

// AddBidirectionalEdge links from and to with the given link characteristics
// in both directions.
func (g *Graph) AddBidirectionalEdge(from, to string, latencyMS, utilization, packetLoss float64) {
	cost := calculateCost(latencyMS, utilization, packetLoss)
	g.addEdge(Edge{From: from, To: to, LatencyMS: latencyMS, Utilization: utilization, PacketLoss: packetLoss, Cost: cost})
	g.addEdge(Edge{From: to, To: from, LatencyMS: latencyMS, Utilization: utilization, PacketLoss: packetLoss, Cost: cost})
}

func (g *Graph) addEdge(e Edge) {
	if g.Edges[e.From] == nil {
		g.Edges[e.From] = make(map[string]*Edge)
	}
	g.Edges[e.From][e.To] = &e
}

// calculateCost combines latency, utilization and packet loss into a single
// routing cost, penalizing congested links more than the raw numbers would.
func calculateCost(latencyMS, utilization, packetLoss float64) float64 {
	const (
		latencyWeight      = 0.4
		utilizationWeight  = 0.4
		packetLossWeight   = 0.2
	)

	normalizedLatency := latencyMS / 100.0
	normalizedUtilization := utilization
	if utilization > 0.8 {
		normalizedUtilization *= 2.0
	}
	normalizedPacketLoss := packetLoss * 100

	cost := latencyWeight*normalizedLatency + utilizationWeight*normalizedUtilization + packetLossWeight*normalizedPacketLoss
	if cost < 0.001 {
		cost = 0.001
	}
	return cost
}

// Path is a resolved route between two hosts.
type Path struct {
	Nodes        []string
	TotalCost    float64
	TotalLatency float64
}

// Dijkstra returns the lowest-cost path from source to destination.
func (g *Graph) Dijkstra(source, destination string) (*Path, error) {
	if _, ok := g.Nodes[source]; !ok {
		return nil, fmt.Errorf("source node %s not found", source)
	}
	if _, ok := g.Nodes[destination]; !ok {
		return nil, fmt.Errorf("destination node %s not found", destination)
	}

	distances := make(map[string]float64, len(g.Nodes))
	previous := make(map[string]string, len(g.Nodes))
	visited := make(map[string]bool, len(g.Nodes))
	for id := range g.Nodes {
		distances[id] = math.Inf(1)
	}
	distances[source] = 0

	pq := &priorityQueue{}
	heap.Init(pq)
	heap.Push(pq, &item{node: source, priority: 0})

	for pq.Len() > 0 {
		current := heap.Pop(pq).(*item).node
		if visited[current] {
			continue
		}
		visited[current] = true
		if current == destination {
			break
		}

		for neighbor, edge := range g.Edges[current] {
			if visited[neighbor] {
				continue
			}
			candidate := distances[current] + edge.Cost
			if candidate < distances[neighbor] {
				distances[neighbor] = candidate
				previous[neighbor] = current
				heap.Push(pq, &item{node: neighbor, priority: candidate})
			}
		}
	}

	if math.IsInf(distances[destination], 1) {
		return nil, fmt.Errorf("no path found from %s to %s", source, destination)
	}
	return g.reconstructPath(previous, source, destination), nil
}

func (g *Graph) reconstructPath(previous map[string]string, source, destination string) *Path {
	var nodes []string
	current := destination
	for current != source {
		nodes = append([]string{current}, nodes...)
		current = previous[current]
	}
	nodes = append([]string{source}, nodes...)

	var totalCost, totalLatency float64
	for i := 0; i < len(nodes)-1; i++ {
		edge := g.Edges[nodes[i]][nodes[i+1]]
		totalCost += edge.Cost
		totalLatency += edge.LatencyMS
	}

	return &Path{Nodes: nodes, TotalCost: totalCost, TotalLatency: totalLatency}
}

type item struct {
	node     string
	priority float64
	index    int
}

type priorityQueue []*item

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool { return pq[i].priority < pq[j].priority }

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x interface{}) {
	n := len(*pq)
	it := x.(*item)
	it.index = n
	*pq = append(*pq, it)
}

func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*pq = old[:n-1]
	return it
}
