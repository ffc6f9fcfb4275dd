package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const netstatSample = `Active Internet connections (servers and established)
Proto Recv-Q Send-Q Local Address           Foreign Address         State       PID/Program name
tcp        0      0 127.0.0.1:631           0.0.0.0:*               LISTEN      697/cupsd
tcp6       0      0 ::1:631                 :::*                    LISTEN      697/cupsd
tcp        0      0 0.0.0.0:21              0.0.0.0:*               LISTEN      2769/inetd
tcp        0      0 10.0.0.5:54321          93.184.216.34:443       ESTABLISHED 1234/curl
`

const psauxSample = `USER       PID %CPU %MEM    VSZ   RSS TTY      STAT START   TIME COMMAND
root       697  0.0  0.1  12345  6789 ?        Ss   10:00   0:00 /usr/sbin/cupsd
root      2769  0.0  0.1  12345  6789 ?        Ss   10:00   0:00 /usr/sbin/inetd
root      1234  0.0  0.1  12345  6789 ?        Ss   10:00   0:00 /usr/bin/curl
`

func TestParseNetstatKeepsListenAndNonLoopbackUDP(t *testing.T) {
	records := parseNetstat(netstatSample)

	require.Len(t, records, 3, "TCP LISTEN rows and no non-loopback UDP rows present here; the ESTABLISHED row is dropped")

	byPID := map[string]netstatRecord{}
	for _, r := range records {
		byPID[r.pid] = r
	}

	assert.Contains(t, byPID, "697")
	assert.Contains(t, byPID, "2769")
	assert.NotContains(t, byPID, "1234", "a non-LISTEN TCP row must be omitted")
}

func TestParsePsAuxMapsPidToPath(t *testing.T) {
	m := parsePsAux(psauxSample)
	assert.Equal(t, "/usr/sbin/cupsd", m["697"])
	assert.Equal(t, "/usr/sbin/inetd", m["2769"])
}

// TestNetworkListenerFiltersByPackageBinaries reproduces spec section 8
// scenario 5: with package binaries {usr/sbin/cupsd, bin/ls,
// usr/sbin/inetd}, exactly the cupsd (both IPv4 and IPv6) and inetd rows
// survive the join; the curl row is ESTABLISHED, so parseNetstat drops
// it before the join.
func TestNetworkListenerFiltersByPackageBinaries(t *testing.T) {
	records := parseNetstat(netstatSample)
	pidToPath := parsePsAux(psauxSample)

	binaries := map[string]bool{
		"/usr/sbin/cupsd": true,
		"/bin/ls":         true,
		"/usr/sbin/inetd": true,
	}

	var kept []string
	for _, r := range records {
		path, ok := pidToPath[r.pid]
		if !ok || !binaries[path] {
			continue
		}
		kept = append(kept, path)
	}

	assert.ElementsMatch(t, []string{"/usr/sbin/cupsd", "/usr/sbin/cupsd", "/usr/sbin/inetd"}, kept)
}
