package analyzer

import (
	"bufio"
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/pkganalysis/wheelbarrow/internal/message"
	"github.com/pkganalysis/wheelbarrow/internal/probe"
	"github.com/pkganalysis/wheelbarrow/internal/suite"
)

// NetworkListener parses netstat -anp output into records, keeps LISTEN
// for TCP and all UDP with a non-loopback local IP, then joins with a
// process-to-path mapping filtered by the package binaries set (spec
// section 4.5 NetworkListener row). It has no diff record.
type NetworkListener struct {
	memo *FileTypeMemo

	mu      sync.Mutex
	results []*message.NetworkResult
}

func NewNetworkListener(memo *FileTypeMemo) *NetworkListener {
	return &NetworkListener{memo: memo}
}

func (n *NetworkListener) RunAnalysis(ctx context.Context, trigger message.Trigger, args []message.PathPair, deduper *suite.Deduper) error {
	netstatOut, err := probe.NetstatListeners(ctx)
	if err != nil {
		return nil // recoverable: probe failure drops this trigger's contribution
	}
	psOut, err := probe.PsAux(ctx)
	if err != nil {
		return nil
	}

	pidToPath := parsePsAux(psOut)
	binaries := make(map[string]bool)
	for _, b := range n.memo.Binaries() {
		binaries[b] = true
	}

	records := parseNetstat(netstatOut)

	var kept []*message.NetworkResult
	for _, r := range records {
		path, ok := pidToPath[r.pid]
		if !ok {
			continue
		}
		if !binaries[path] {
			continue
		}
		kept = append(kept, &message.NetworkResult{
			LocalIP4:    r.localIP4,
			LocalIP6:    r.localIP6,
			LocalPort:   r.localPort,
			ForeignIP4:  r.foreignIP4,
			ForeignIP6:  r.foreignIP6,
			ForeignPort: r.foreignPort,
			IsUDP:       r.isUDP,
			ProcessPath: path,
		})
	}

	n.mu.Lock()
	n.results = kept
	n.mu.Unlock()

	return nil
}

func (n *NetworkListener) AddDescriptiveResults(trigger message.Trigger, out *message.InnerResult) error {
	n.mu.Lock()
	results := n.results
	n.mu.Unlock()

	out.NetworkResults = append(out.NetworkResults, results...)
	return nil
}

func (n *NetworkListener) AddDiffResults(pair message.DiffPair, out *message.InnerResult) error {
	return nil
}

type netstatRecord struct {
	localIP4, localIP6     string
	localPort              int
	foreignIP4, foreignIP6 string
	foreignPort            int
	isUDP                  bool
	pid                    string
}

// parseNetstat parses `netstat -anp` lines, keeping TCP LISTEN rows and
// every UDP row whose local address is not loopback (spec section 4.5).
func parseNetstat(out string) []netstatRecord {
	var records []netstatRecord

	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 6 {
			continue
		}

		proto := fields[0]
		isUDP := strings.HasPrefix(proto, "udp")
		isTCP := strings.HasPrefix(proto, "tcp")
		if !isUDP && !isTCP {
			continue
		}

		localAddr := fields[3]
		foreignAddr := fields[4]

		if isTCP {
			state := fields[5]
			if state != "LISTEN" {
				continue
			}
		}

		localIP, localPort := splitHostPort(localAddr)
		if isUDP && isLoopback(localIP) {
			continue
		}

		foreignIP, foreignPort := splitHostPort(foreignAddr)

		pid := ""
		if len(fields) >= 7 {
			pid = strings.SplitN(fields[6], "/", 2)[0]
		}

		rec := netstatRecord{
			localPort:   localPort,
			foreignPort: foreignPort,
			isUDP:       isUDP,
			pid:         pid,
		}
		if strings.Contains(proto, "6") {
			rec.localIP6 = localIP
			rec.foreignIP6 = foreignIP
		} else {
			rec.localIP4 = localIP
			rec.foreignIP4 = foreignIP
		}

		records = append(records, rec)
	}

	return records
}

func splitHostPort(addr string) (host string, port int) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return addr, 0
	}
	host = addr[:idx]
	port, _ = strconv.Atoi(addr[idx+1:])
	return host, port
}

func isLoopback(ip string) bool {
	return ip == "127.0.0.1" || ip == "::1" || strings.HasPrefix(ip, "127.")
}

// parsePsAux maps pid -> command path from `ps aux` output.
func parsePsAux(out string) map[string]string {
	m := make(map[string]string)

	scanner := bufio.NewScanner(strings.NewReader(out))
	first := true
	for scanner.Scan() {
		if first {
			first = false
			continue // header row
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 11 {
			continue
		}
		pid := fields[1]
		command := fields[10]
		m[pid] = command
	}

	return m
}
