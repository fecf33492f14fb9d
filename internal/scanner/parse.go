package scanner

import (
	"regexp"
	"strconv"
	"strings"
)

// UnknownProcess is the process name reported when the OS tool does not expose one.
const UnknownProcess = "Unknown"

const maxPort = 65535

// trailingPort matches the port suffix of an address such as "*:3000",
// "127.0.0.1:8080" or "[::1]:5432".
var trailingPort = regexp.MustCompile(`:(\d+)$`)

// ParseUnix parses `lsof -i -P -n | grep LISTEN` output.
//
//	COMMAND PID USER FD TYPE DEVICE SIZE/OFF NODE NAME
//	node    1234 me  12u IPv4 0x...  0t0     TCP  *:3000 (LISTEN)
//
// Lines with fewer than nine fields, or whose NAME column has no trailing
// port, are skipped.
func ParseUnix(output string) []Port {
	var ports []Port

	for _, line := range splitLines(output) {
		fields := strings.Fields(line)
		if len(fields) < 9 {
			continue
		}

		port, ok := parsePort(fields[8])
		if !ok {
			continue
		}
		pid, ok := parsePID(fields[1])
		if !ok {
			continue
		}

		ports = append(ports, Port{
			Port:     port,
			PID:      pid,
			Process:  unescapeProcessName(fields[0]),
			Protocol: fields[7],
		})
	}

	return ports
}

// ParseWindows parses `netstat -ano | findstr LISTENING` output.
//
//	Proto Local Address Foreign Address State     PID
//	TCP   0.0.0.0:8080  0.0.0.0:0       LISTENING 5678
//
// netstat does not report process names, so every record is UnknownProcess.
func ParseWindows(output string) []Port {
	var ports []Port

	for _, line := range splitLines(output) {
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}

		port, ok := parsePort(fields[1])
		if !ok {
			continue
		}
		pid, ok := parsePID(fields[4])
		if !ok {
			continue
		}

		ports = append(ports, Port{
			Port:     port,
			PID:      pid,
			Process:  UnknownProcess,
			Protocol: fields[0],
		})
	}

	return ports
}

func splitLines(output string) []string {
	output = strings.TrimSpace(output)
	if output == "" {
		return nil
	}
	return strings.Split(output, "\n")
}

func parsePort(address string) (int, bool) {
	m := trailingPort.FindStringSubmatch(address)
	if m == nil {
		return 0, false
	}
	port, err := strconv.Atoi(m[1])
	if err != nil || port < 1 || port > maxPort {
		return 0, false
	}
	return port, true
}

func parsePID(field string) (int, bool) {
	pid, err := strconv.Atoi(field)
	if err != nil || pid < 1 {
		return 0, false
	}
	return pid, true
}

// unescapeProcessName undoes lsof's escaping of command names
// (e.g., "Code\x20Helper" -> "Code Helper").
func unescapeProcessName(name string) string {
	name = strings.ReplaceAll(name, `\x20`, " ")
	name = strings.ReplaceAll(name, `\x2d`, "-")
	return name
}
