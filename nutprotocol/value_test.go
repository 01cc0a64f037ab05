package nutprotocol

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw(lines ...string) RawResponse {
	return RawResponse{Lines: lines}
}

func TestExtractQuotedValue(t *testing.T) {
	p := NewValueParser()

	tests := []struct {
		line  string
		value string
		ok    bool
	}{
		{`VAR dummy-sim ups.firmware "01.01.00"`, "01.01.00", true},
		{`UPS dummy-sim "Dummy UPS"`, "Dummy UPS", true},
		{`VAR dummy-sim ups.id ""`, "", true},
		{`RANGE dummy-sim ups.delay.shutdown "0" "60"`, "0", true},
		{`NUMLOGINS dummy-sim 1`, "", false},
		{`half "open`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			value, ok := p.ExtractQuotedValue(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.value, value)
		})
	}
}

func TestExtractQuotedValueStrictlyBetweenQuotes(t *testing.T) {
	p := NewValueParser()
	for _, inner := range []string{"", "x", "two words", "a-b.c", "tab\there", "100%"} {
		for _, prefix := range []string{"", "VAR u n ", "  "} {
			line := prefix + `"` + inner + `"` + ` trailing "other"`
			value, ok := p.ExtractQuotedValue(line)
			require.True(t, ok, line)
			assert.Equal(t, inner, value, line)
		}
	}
}

func TestExtractQuotedValueEscapes(t *testing.T) {
	p := NewValueParser()

	tests := []struct {
		line  string
		value string
	}{
		{`VAR dummy-sim device.description "say \"hi\" now"`, `say "hi" now`},
		{`VAR dummy-sim driver.path "C:\\nut\\bin"`, `C:\nut\bin`},
		{`VAR dummy-sim x "ends with \\"`, `ends with \`},
		{`VAR dummy-sim x "\"" trailing "other"`, `"`},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			value, ok := p.ExtractQuotedValue(tt.line)
			require.True(t, ok)
			assert.Equal(t, tt.value, value)
		})
	}

	assert.Equal(t, "device.description", p.ExtractPropertyKey(`VAR dummy-sim device.description "a \"b\""`))
	_, ok := p.ExtractQuotedValue(`VAR dummy-sim x "unterminated \"`)
	assert.False(t, ok)
}

func TestListResponseRoundTripEscapes(t *testing.T) {
	p := NewValueParser()
	original := NewMappingResponse([]Entry{
		{Key: "device.description", Value: `rack "A" UPS`},
		{Key: "driver.path", Value: `C:\nut`},
	})

	wire := original.Format("VAR dummy-sim")
	assert.Equal(t, `VAR dummy-sim device.description "rack \"A\" UPS"`, wire[1])

	framed, err := readResponse(newScript(wire...), FrameOptions{})
	require.NoError(t, err)
	assert.Equal(t, original.Map(), p.ParseList(framed).Map())
}

func TestExtractQuotedValues(t *testing.T) {
	p := NewValueParser()
	assert.Equal(t, []string{"0", "60"}, p.ExtractQuotedValues(`RANGE dummy-sim ups.delay.shutdown "0" "60"`))
	assert.Empty(t, p.ExtractQuotedValues("CMD dummy-sim test.battery.start"))
}

func TestExtractPropertyKey(t *testing.T) {
	p := NewValueParser()
	assert.Equal(t, "ups.firmware", p.ExtractPropertyKey(`VAR dummy-sim ups.firmware "01.01.00"`))
	assert.Equal(t, "dummy-sim", p.ExtractPropertyKey(`UPS dummy-sim "Dummy UPS"`))
	assert.Equal(t, "test.battery.start", p.ExtractPropertyKey("CMD dummy-sim test.battery.start"))
}

func TestExtractUnquotedValue(t *testing.T) {
	p := NewValueParser()
	assert.Equal(t, "test.battery.start", p.ExtractUnquotedValue("CMD dummy-sim test.battery.start"))
	assert.Equal(t, "1.3", p.ExtractUnquotedValue("1.3"))
	assert.Equal(t, "", p.ExtractUnquotedValue("   "))
}

func TestCustomStrategy(t *testing.T) {
	afterName := func(line string) string {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return LastWord(line)
		}
		return strings.Join(fields[3:], " ")
	}
	p := NewValueParserWithStrategy(afterName)
	value, err := p.ParseScalar(raw("TYPE dummy-sim input.transfer.high RW ENUM NUMBER"))
	require.NoError(t, err)
	assert.Equal(t, "RW ENUM NUMBER", value)

	assert.NotNil(t, NewValueParserWithStrategy(nil).unquoted)
}

func TestParseScalar(t *testing.T) {
	p := NewValueParser()

	tests := []struct {
		name     string
		resp     RawResponse
		expected string
	}{
		{"quoted", raw(`VAR dummy-sim ups.firmware "01.01.00"`), "01.01.00"},
		{"bare", raw("1.3"), "1.3"},
		{"trailing token", raw("NUMLOGINS dummy-sim 1"), "1"},
		{"banner https", raw("Network UPS Tools upsd 2.8.0 - https://www.networkupstools.org/"), "Network UPS Tools upsd 2.8.0"},
		{"banner http", raw("Network UPS Tools upsd 2.7.4 - http://www.networkupstools.org/"), "Network UPS Tools upsd 2.7.4"},
		{"banner without url", raw("Network UPS Tools upsd 2.8.0"), "2.8.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := p.ParseScalar(tt.resp)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, value)
		})
	}
}

func TestParseScalarEmpty(t *testing.T) {
	_, err := NewValueParser().ParseScalar(RawResponse{})
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, ErrKindUnexpectedResponse, pe.Kind)
}

func TestParseScalarIdempotent(t *testing.T) {
	p := NewValueParser()
	for _, line := range []string{`VAR dummy-sim ups.firmware "01.01.00"`, "NETVER 1.3", "CMD dummy-sim test.battery.start"} {
		first, err := p.ParseScalar(raw(line))
		require.NoError(t, err)
		second, err := p.ParseScalar(raw(first))
		require.NoError(t, err)
		assert.Equal(t, first, second, line)
	}
}

func TestParseListMapping(t *testing.T) {
	list := NewValueParser().ParseList(raw(
		`VAR dummy-sim battery.charge "100"`,
		`VAR dummy-sim ups.status "OL"`,
	))
	assert.Equal(t, ListMapping, list.Kind)
	assert.Equal(t, map[string]string{"battery.charge": "100", "ups.status": "OL"}, list.Map())
	value, ok := list.Get("ups.status")
	assert.True(t, ok)
	assert.Equal(t, "OL", value)
	assert.Equal(t, 2, list.Len())
}

func TestParseListSequence(t *testing.T) {
	// LIST CMD dummy-sim with markers already stripped.
	list := NewValueParser().ParseList(raw("CMD dummy-sim test.battery.start"))
	assert.Equal(t, ListSequence, list.Kind)
	assert.Equal(t, []string{"test.battery.start"}, list.Values)
	assert.Empty(t, list.Entries)
}

func TestParseListMixed(t *testing.T) {
	list := NewValueParser().ParseList(raw(
		`VAR dummy-sim ups.status "OL"`,
		"CLIENT dummy-sim 127.0.0.1",
	))
	assert.Equal(t, ListMapping, list.Kind)
	assert.Equal(t, []Entry{{Key: "ups.status", Value: "OL"}}, list.Entries)
	assert.Equal(t, []string{"127.0.0.1"}, list.Values)
	assert.Equal(t, 2, list.Len())
}

func TestParseListSkipsScaffolding(t *testing.T) {
	list := NewValueParser().ParseList(raw(
		"BEGIN LIST CMD dummy-sim",
		"CMD dummy-sim test.battery.start",
		"END LIST CMD dummy-sim",
	))
	assert.Equal(t, []string{"test.battery.start"}, list.Values)
}

func TestParseListRepeatedKeys(t *testing.T) {
	list := NewValueParser().ParseList(raw(
		`ENUM dummy-sim input.transfer.high "264"`,
		`ENUM dummy-sim input.transfer.high "271"`,
	))
	require.Len(t, list.Entries, 2)
	assert.Equal(t, "264", list.Entries[0].Value)
	assert.Equal(t, "271", list.Entries[1].Value)
	value, _ := list.Get("input.transfer.high")
	assert.Equal(t, "264", value)
	assert.Equal(t, "271", list.Map()["input.transfer.high"])
}

func TestParseListHelp(t *testing.T) {
	list := NewValueParser().ParseList(raw("Commands: HELP VER GET LIST LOGOUT STARTTLS"))
	assert.Equal(t, ListCommands, list.Kind)
	assert.Equal(t, []string{"HELP", "VER", "GET", "LIST", "LOGOUT", "STARTTLS"}, list.Commands)
	assert.Equal(t, 6, list.Len())
}

func TestListResponseRoundTrip(t *testing.T) {
	p := NewValueParser()
	for n := 0; n <= 6; n++ {
		entries := make([]Entry, n)
		for i := range entries {
			entries[i] = Entry{
				Key:   "var." + string(rune('a'+i)),
				Value: strings.Repeat("v", i) + " with spaces",
			}
		}
		original := NewMappingResponse(entries)

		wire := original.Format("VAR dummy-sim")
		require.Len(t, wire, n+2)
		assert.Equal(t, "BEGIN LIST VAR dummy-sim", wire[0])
		assert.Equal(t, "END LIST VAR dummy-sim", wire[len(wire)-1])

		framed, err := readResponse(newScript(wire...), FrameOptions{})
		require.NoError(t, err)
		parsed := p.ParseList(framed)

		if n == 0 {
			assert.Empty(t, parsed.Entries)
			continue
		}
		assert.Equal(t, ListMapping, parsed.Kind)
		assert.Equal(t, original.Entries, parsed.Entries, "n=%d", n)
	}
}

func TestListResponseFormatSequenceAndCommands(t *testing.T) {
	seq := NewSequenceResponse([]string{"test.battery.start"})
	assert.Equal(t, []string{
		"BEGIN LIST CMD dummy-sim",
		"CMD dummy-sim test.battery.start",
		"END LIST CMD dummy-sim",
	}, seq.Format("CMD dummy-sim"))

	cmds := ListResponse{Kind: ListCommands, Commands: []string{"HELP", "VER"}}
	assert.Equal(t, []string{"Commands: HELP VER"}, cmds.Format("ignored"))
}

func TestServerBanner(t *testing.T) {
	banner := "Network UPS Tools upsd 2.8.0 - https://www.networkupstools.org/"
	assert.True(t, IsServerBanner(banner))
	assert.False(t, IsServerBanner("Network UPS Tools upsd 2.8.0"))
	assert.False(t, IsServerBanner("something - https://www.networkupstools.org/"))
	assert.Equal(t, "Network UPS Tools upsd 2.8.0", StripServerBanner(banner))
}
