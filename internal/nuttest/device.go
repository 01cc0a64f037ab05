package nuttest

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Replies shared by every fake device.
const (
	NetVer      = "1.3"
	VerBanner   = "Network UPS Tools upsd 2.8.0 - https://www.networkupstools.org/"
	HelpReply   = "Commands: HELP VER GET LIST SET INSTCMD LOGIN LOGOUT USERNAME PASSWORD STARTTLS"
	GoodbyeLine = "OK Goodbye"
)

// Var is one device variable.
type Var struct {
	Name  string
	Value string
	Type  string // e.g. "STRING:64" or "NUMBER"; "" means NUMBER
	Desc  string
	RW    bool
}

// Device is the data a fake upsd serves for one UPS.
type Device struct {
	Name        string
	Description string
	Vars        []Var
	Commands    map[string]string // instant command -> description
	Clients     []string
	Enums       map[string][]string
	Ranges      map[string][][2]string
	NumLogins   int
}

// DummySim returns the device NUT's dummy-ups driver simulates in its
// default configuration.
func DummySim() Device {
	return Device{
		Name:        "dummy-sim",
		Description: "Dummy UPS",
		Vars: []Var{
			{Name: "battery.charge", Value: "100", Desc: "Battery charge (percent of full)"},
			{Name: "battery.runtime", Value: "1800", Desc: "Battery runtime (seconds)"},
			{Name: "device.mfr", Value: "Dummy Manufacturer", Type: "STRING:64", Desc: "Device manufacturer"},
			{Name: "input.transfer.high", Value: "264", Desc: "High voltage transfer point (V)", RW: true},
			{Name: "input.voltage", Value: "230.0", Desc: "Input voltage (V)"},
			{Name: "ups.delay.shutdown", Value: "20", Desc: "Interval to wait after shutdown with delay command (seconds)", RW: true},
			{Name: "ups.firmware", Value: "01.01.00", Type: "STRING:32", Desc: "UPS firmware"},
			{Name: "ups.status", Value: "OL", Type: "STRING:32", Desc: "UPS status"},
		},
		Commands: map[string]string{
			"test.battery.start": "Start a battery test",
		},
		Clients: []string{"127.0.0.1"},
		Enums: map[string][]string{
			"input.transfer.high": {"264", "271", "280"},
		},
		Ranges: map[string][][2]string{
			"ups.delay.shutdown": {{"0", "60"}, {"120", "180"}},
		},
		NumLogins: 1,
	}
}

func (d Device) lookup(name string) (Var, bool) {
	for _, v := range d.Vars {
		if v.Name == name {
			return v, true
		}
	}
	return Var{}, false
}

// DeviceHandler answers the read-only upsd commands for devices.
// Unknown device names get ERR UNKNOWN-UPS, unknown variables
// ERR VAR-NOT-SUPPORTED and unknown verbs ERR UNKNOWN-COMMAND.
// STARTTLS is refused with ERR FEATURE-NOT-CONFIGURED.
func DeviceHandler(devices ...Device) Handler {
	byName := make(map[string]Device, len(devices))
	for _, d := range devices {
		byName[d.Name] = d
	}

	return func(cmd string) string {
		fields := strings.Fields(cmd)
		if len(fields) == 0 {
			return "ERR UNKNOWN-COMMAND\n"
		}

		switch strings.ToUpper(fields[0]) {
		case "NETVER":
			return NetVer + "\n"
		case "VER":
			return VerBanner + "\n"
		case "HELP":
			return HelpReply + "\n"
		case "LOGOUT":
			return GoodbyeLine + "\n"
		case "STARTTLS":
			return "ERR FEATURE-NOT-CONFIGURED\n"
		case "GET":
			return handleGet(byName, fields[1:])
		case "LIST":
			return handleList(devices, byName, fields[1:])
		}
		return "ERR UNKNOWN-COMMAND\n"
	}
}

func handleGet(byName map[string]Device, args []string) string {
	if len(args) < 2 {
		return "ERR INVALID-ARGUMENT\n"
	}
	sub := strings.ToUpper(args[0])
	d, ok := byName[args[1]]
	if !ok {
		return "ERR UNKNOWN-UPS\n"
	}

	switch sub {
	case "NUMLOGINS":
		return fmt.Sprintf("NUMLOGINS %s %d\n", d.Name, d.NumLogins)
	case "UPSDESC":
		return fmt.Sprintf("UPSDESC %s \"%s\"\n", d.Name, d.Description)
	}

	if len(args) < 3 {
		return "ERR INVALID-ARGUMENT\n"
	}
	name := args[2]

	if sub == "CMDDESC" {
		desc, ok := d.Commands[name]
		if !ok {
			return "ERR CMD-NOT-SUPPORTED\n"
		}
		return fmt.Sprintf("CMDDESC %s %s \"%s\"\n", d.Name, name, desc)
	}

	v, ok := d.lookup(name)
	if !ok {
		return "ERR VAR-NOT-SUPPORTED\n"
	}
	switch sub {
	case "VAR":
		return fmt.Sprintf("VAR %s %s \"%s\"\n", d.Name, v.Name, v.Value)
	case "DESC":
		return fmt.Sprintf("DESC %s %s \"%s\"\n", d.Name, v.Name, v.Desc)
	case "TYPE":
		types := []string{}
		if v.RW {
			types = append(types, "RW")
		}
		if _, ok := d.Enums[v.Name]; ok {
			types = append(types, "ENUM")
		}
		if _, ok := d.Ranges[v.Name]; ok {
			types = append(types, "RANGE")
		}
		if v.Type == "" {
			types = append(types, "NUMBER")
		} else {
			types = append(types, v.Type)
		}
		return fmt.Sprintf("TYPE %s %s %s\n", d.Name, v.Name, strings.Join(types, " "))
	}
	return "ERR INVALID-ARGUMENT\n"
}

func handleList(devices []Device, byName map[string]Device, args []string) string {
	if len(args) == 0 {
		return "ERR INVALID-ARGUMENT\n"
	}
	sub := strings.ToUpper(args[0])

	if sub == "UPS" {
		lines := make([]string, 0, len(devices))
		for _, d := range devices {
			lines = append(lines, fmt.Sprintf("UPS %s \"%s\"", d.Name, d.Description))
		}
		return ListBlock("UPS", lines)
	}

	if len(args) < 2 {
		return "ERR INVALID-ARGUMENT\n"
	}
	d, ok := byName[args[1]]
	if !ok {
		return "ERR UNKNOWN-UPS\n"
	}
	header := sub + " " + d.Name
	var lines []string

	switch sub {
	case "VAR", "RW":
		for _, v := range d.Vars {
			if sub == "RW" && !v.RW {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s %s %s \"%s\"", sub, d.Name, v.Name, v.Value))
		}
	case "CMD":
		for _, name := range slices.Sorted(maps.Keys(d.Commands)) {
			lines = append(lines, fmt.Sprintf("CMD %s %s", d.Name, name))
		}
	case "CLIENT":
		for _, addr := range d.Clients {
			lines = append(lines, fmt.Sprintf("CLIENT %s %s", d.Name, addr))
		}
	case "ENUM", "RANGE":
		if len(args) < 3 {
			return "ERR INVALID-ARGUMENT\n"
		}
		name := args[2]
		header += " " + name
		if sub == "ENUM" {
			values, ok := d.Enums[name]
			if !ok {
				return "ERR VAR-NOT-SUPPORTED\n"
			}
			for _, value := range values {
				lines = append(lines, fmt.Sprintf("ENUM %s %s \"%s\"", d.Name, name, value))
			}
		} else {
			ranges, ok := d.Ranges[name]
			if !ok {
				return "ERR VAR-NOT-SUPPORTED\n"
			}
			for _, r := range ranges {
				lines = append(lines, fmt.Sprintf("RANGE %s %s \"%s\" \"%s\"", d.Name, name, r[0], r[1]))
			}
		}
	default:
		return "ERR INVALID-ARGUMENT\n"
	}
	return ListBlock(header, lines)
}

// ListBlock wraps lines in BEGIN LIST / END LIST markers.
func ListBlock(header string, lines []string) string {
	var b strings.Builder
	b.WriteString("BEGIN LIST " + header + "\n")
	for _, line := range lines {
		b.WriteString(line + "\n")
	}
	b.WriteString("END LIST " + header + "\n")
	return b.String()
}
