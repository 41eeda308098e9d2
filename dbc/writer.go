package dbc

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// placeholder used by DBC editors for a missing node name
const noNode = "Vector__XXX"

// Write describes the database in DBC syntax.
// Parsing the output gives back a database that decodes the same way.
func Write(w io.Writer, db *Database) error {
	bw := bufio.NewWriter(w)

	for frame := range db.Frames() {
		writeFrame(bw, frame)
	}

	for frame := range db.Frames() {
		for sig := range frame.Signals() {
			if sig.ValueTable() == nil {
				continue
			}
			writeValues(bw, frame, sig)
		}
	}

	return bw.Flush()
}

func writeFrame(bw *bufio.Writer, frame *Frame) {
	sender := frame.Sender
	if sender == "" {
		sender = noNode
	}

	fmt.Fprintf(bw, "BO_ %d %s: %d %s\n", frame.ID, frame.Name, frame.DLC, sender)

	for sig := range frame.Signals() {
		writeSignal(bw, sig)
	}

	bw.WriteString("\n")
}

func writeSignal(bw *bufio.Writer, sig *Signal) {
	mux := ""
	switch sig.MuxRole {
	case MuxRoleSelector:
		mux = "M "
	case MuxRoleData:
		mux = fmt.Sprintf("m%d ", sig.MuxID)
	}

	order := 1
	if sig.IsBigEndian() {
		order = 0
	}

	sign := "+"
	if sig.Signed {
		sign = "-"
	}

	receivers := noNode
	if len(sig.Receivers) > 0 {
		receivers = strings.Join(sig.Receivers, ",")
	}

	fmt.Fprintf(bw, " SG_ %s %s: %d|%d@%d%s (%s,%s) [%s|%s] \"%s\" %s\n",
		sig.Name, mux, sig.DBCStartBit(), sig.Length, order, sign,
		formatFloat(sig.Factor), formatFloat(sig.Offset),
		formatFloat(sig.Min), formatFloat(sig.Max),
		sig.Unit, receivers,
	)
}

func writeValues(bw *bufio.Writer, frame *Frame, sig *Signal) {
	fmt.Fprintf(bw, "VAL_ %d %s", frame.ID, sig.Name)
	for entry := range sig.ValueTable().Entries() {
		fmt.Fprintf(bw, " %d \"%s\"", entry.Raw, entry.Label)
	}
	bw.WriteString(" ;\n")
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
