// Command flowgen synthesizes flow traffic against flowagent's JSON test
// channel. It builds a small synthetic topology (adapted from the
// teacher's network simulator) and walks shortest paths between random
// host pairs, turning each path's total latency into one flow sample — the same
// role original_source/scripts/send_json_udp_samples.py served, but
// latency now comes from a topology instead of a fixed random set.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net"
	"os"
	"time"

	"github.com/netweaver/flowtelemetry/pkg/topology"
)

type sample struct {
	TS        float64 `json:"ts"`
	Src       string  `json:"src"`
	Dst       string  `json:"dst"`
	SrcPort   int     `json:"src_port"`
	DstPort   int     `json:"dst_port"`
	Proto     string  `json:"proto"`
	LatencyMS float64 `json:"latency_ms"`
	Bytes     int64   `json:"bytes"`
	Packets   int64   `json:"packets"`
}

func buildTopology(numNodes int) *topology.Graph {
	g := topology.NewGraph()
	for i := 0; i < numNodes; i++ {
		g.AddNode(fmt.Sprintf("R%d", i), fmt.Sprintf("10.%d.%d.1", i/256, i%256))
	}

	const neighborsPerNode = 4
	for i := 0; i < numNodes; i++ {
		from := fmt.Sprintf("R%d", i)
		for j := 1; j <= neighborsPerNode; j++ {
			to := fmt.Sprintf("R%d", (i+j)%numNodes)
			latency := 5.0 + rand.Float64()*10
			utilization := rand.Float64() * 0.6
			packetLoss := rand.Float64() * 0.001
			g.AddBidirectionalEdge(from, to, latency, utilization, packetLoss)
		}
	}
	return g
}

func main() {
	target := flag.String("target", "127.0.0.1:6343", "flowagent JSON channel address")
	nodes := flag.Int("nodes", 50, "number of synthetic hosts")
	count := flag.Int("count", 500, "number of samples to send")
	spikeEvery := flag.Int("spike-every", 0, "if > 0, every Nth sample gets an injected latency spike")
	interval := flag.Duration("interval", 20*time.Millisecond, "delay between samples")
	flag.Parse()

	g := buildTopology(*nodes)

	conn, err := net.Dial("udp", *target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "flowgen: dial %s: %v\n", *target, err)
		os.Exit(1)
	}
	defer conn.Close()

	for i := 0; i < *count; i++ {
		src := fmt.Sprintf("R%d", rand.Intn(*nodes))
		dst := fmt.Sprintf("R%d", rand.Intn(*nodes))
		if src == dst {
			continue
		}

		path, err := g.Dijkstra(src, dst)
		if err != nil {
			continue
		}

		latency := path.TotalLatency
		if *spikeEvery > 0 && i%*spikeEvery == 0 {
			latency *= 10
		}

		s := sample{
			TS:        float64(time.Now().Unix()),
			Src:       srcAddress(g, src),
			Dst:       srcAddress(g, dst),
			SrcPort:   1024 + rand.Intn(60000),
			DstPort:   []int{80, 443, 22, 53}[rand.Intn(4)],
			Proto:     "TCP",
			LatencyMS: latency,
			Bytes:     int64(100 + rand.Intn(1400)),
			Packets:   int64(1 + rand.Intn(10)),
		}

		payload, err := json.Marshal(s)
		if err != nil {
			continue
		}
		conn.Write(payload)

		time.Sleep(*interval)
	}
}

func srcAddress(g *topology.Graph, nodeID string) string {
	if n, ok := g.Nodes[nodeID]; ok {
		return n.Address
	}
	return nodeID
}
