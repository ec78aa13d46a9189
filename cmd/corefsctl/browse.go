package main

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/coldtree/corefs/bkey"
	"github.com/coldtree/corefs/btreeid"
	"github.com/coldtree/corefs/txn"
)

// browse is an interactive raw-terminal viewer over one tree: a
// txn.Iterator over decoded bkey.Key records drives a fixed-height window
// of rows, and a "/" search takes an "inode:offset" pair since positions
// are structured triples rather than opaque byte strings.
func newBrowseCmd() *cobra.Command {
	var snapshot uint32
	cmd := &cobra.Command{
		Use:   "browse <btree> <dir>",
		Short: "interactively browse one tree's keys in a raw terminal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBtreeID(args[0])
			if err != nil {
				return err
			}
			return runBrowse(args[1], id, snapshot)
		},
	}
	cmd.Flags().Uint32Var(&snapshot, "snapshot", 0, "snapshot id to resolve reads against (0 = root line)")
	return cmd
}

func runBrowse(dir string, id btreeid.ID, snap uint32) error {
	fs, err := txn.Open(dir)
	if err != nil {
		return fmt.Errorf("open %s: %w", dir, err)
	}
	defer fs.Close()

	tx := txn.Begin(fs, snap)
	defer tx.Put()

	it, err := tx.IterInit(id, txn.WithFilterSnapshots())
	if err != nil {
		return err
	}
	defer it.Close()
	it.SeekFirst()

	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return err
	}
	defer term.Restore(int(os.Stdin.Fd()), oldState)

	v := &viewer{id: id, it: it}
	v.updateSize()
	v.load()

	fmt.Print("\033[?25l\033[2J")
	defer fmt.Print("\033[?25h\033[2J\033[H")

	reader := bufio.NewReader(os.Stdin)

	for {
		if v.updateSize() {
			v.load()
		}
		v.render()

		b, err := reader.ReadByte()
		if err != nil {
			break
		}
		v.status = ""

		switch b {
		case 'q', 3, 27:
			if b == 27 && reader.Buffered() > 0 {
				b2, _ := reader.ReadByte()
				if b2 == '[' {
					b3, _ := reader.ReadByte()
					switch b3 {
					case 'A':
						v.up()
					case 'B':
						v.down()
					case '5':
						reader.ReadByte()
						v.pageUp()
					case '6':
						reader.ReadByte()
						v.pageDown()
					}
				}
				continue
			}
			return nil
		case 'j':
			v.down()
		case 'k':
			v.up()
		case 'g':
			v.first()
		case 'G':
			v.last()
		case '/':
			v.search(reader)
		}
	}
	return nil
}

type item struct {
	key bkey.Key
}

type viewer struct {
	id      btreeid.ID
	it      *txn.Iterator
	items   []item
	width   int
	height  int
	atStart bool
	atEnd   bool
	status  string
}

func (v *viewer) updateSize() bool {
	w, h, err := term.GetSize(int(os.Stdin.Fd()))
	if err != nil {
		w, h = 80, 24
	}
	if w == v.width && h == v.height {
		return false
	}
	v.width, v.height = w, h
	return true
}

func (v *viewer) lines() int {
	return v.height - 4
}

func cloneKey(k bkey.Key) bkey.Key {
	k.Payload = bytes.Clone(k.Payload)
	return k
}

func (v *viewer) load() {
	v.items = nil
	v.atStart = false
	v.atEnd = false

	if !v.it.Valid() {
		v.it.SeekFirst()
		if !v.it.Valid() {
			v.atStart = true
			v.atEnd = true
			return
		}
	}

	lines := v.lines()
	for i := 0; i < lines && v.it.Valid(); i++ {
		v.items = append(v.items, item{key: cloneKey(v.it.Key())})
		if !v.it.Next() {
			v.atEnd = true
			break
		}
	}

	if len(v.items) > 0 {
		first := v.items[0].key.Pos
		v.it.Seek(first.Inode, first.Offset)
		if !v.it.Prev() {
			v.atStart = true
		}
		v.it.Seek(first.Inode, first.Offset)
	}
}

func (v *viewer) down() {
	if len(v.items) == 0 {
		return
	}
	last := v.items[len(v.items)-1].key.Pos
	v.it.Seek(last.Inode, last.Offset)
	if v.it.Next() {
		v.items = append(v.items[1:], item{key: cloneKey(v.it.Key())})
		v.atStart = false
		if !v.it.Next() {
			v.atEnd = true
		}
		first := v.items[0].key.Pos
		v.it.Seek(first.Inode, first.Offset)
	} else if len(v.items) > 1 {
		v.items = v.items[1:]
		v.atEnd = true
	}
}

func (v *viewer) up() {
	if v.atStart || len(v.items) == 0 {
		return
	}
	first := v.items[0].key.Pos
	v.it.Seek(first.Inode, first.Offset)
	if v.it.Prev() {
		newItem := item{key: cloneKey(v.it.Key())}
		if len(v.items) >= v.lines() {
			v.items = append([]item{newItem}, v.items[:len(v.items)-1]...)
		} else {
			v.items = append([]item{newItem}, v.items...)
		}
		v.atEnd = false
		if !v.it.Prev() {
			v.atStart = true
		}
		nf := v.items[0].key.Pos
		v.it.Seek(nf.Inode, nf.Offset)
	}
}

func (v *viewer) pageDown() {
	for i := 0; i < v.lines()-1; i++ {
		v.down()
	}
}

func (v *viewer) pageUp() {
	for i := 0; i < v.lines()-1; i++ {
		v.up()
	}
}

func (v *viewer) first() {
	v.it.SeekFirst()
	v.load()
}

func (v *viewer) last() {
	v.it.SeekLast()
	for i := 0; i < v.lines()-1; i++ {
		if !v.it.Prev() {
			break
		}
	}
	v.load()
}

func (v *viewer) search(reader *bufio.Reader) {
	fmt.Print("\033[?25h")
	fmt.Printf("\033[%d;1H\033[K/", v.height)

	var input []byte
	for {
		b, err := reader.ReadByte()
		if err != nil {
			break
		}
		if b == 27 || b == 3 {
			fmt.Print("\033[?25l")
			v.status = ""
			return
		}
		if b == 13 || b == 10 {
			break
		}
		if b == 127 || b == 8 {
			if len(input) > 0 {
				input = input[:len(input)-1]
				fmt.Print("\b \b")
			}
			continue
		}
		if b >= 32 && b < 127 {
			input = append(input, b)
			fmt.Print(string(b))
		}
	}
	fmt.Print("\033[?25l")

	if len(input) == 0 {
		v.status = ""
		return
	}

	inode, offset, ok := parsePositionQuery(string(input))
	if !ok {
		v.status = "usage: inode:offset"
		return
	}
	if v.it.Seek(inode, offset) {
		v.load()
		v.status = fmt.Sprintf("jumped to: %d:%d", inode, offset)
	} else {
		v.status = "not found"
	}
}

// parsePositionQuery parses an "inode:offset" search query; offset may be
// omitted ("inode" alone means offset 0).
func parsePositionQuery(s string) (inode, offset uint64, ok bool) {
	parts := strings.SplitN(s, ":", 2)
	inode, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	if len(parts) == 2 {
		offset, err = strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return 0, 0, false
		}
	}
	return inode, offset, true
}

func (v *viewer) render() {
	var b strings.Builder

	b.WriteString("\033[H")
	b.WriteString(fmt.Sprintf("[ corefsctl browse: %s ]\033[K\r\n", v.id))
	b.WriteString(strings.Repeat("─", v.width))
	b.WriteString("\033[K\r\n")

	keyWidth := 32
	valWidth := v.width - keyWidth - 4
	if valWidth < 20 {
		valWidth = 20
	}

	lines := v.lines()
	for i := 0; i < lines; i++ {
		if i < len(v.items) {
			k := v.items[i].key
			keyStr := fmt.Sprintf("%d:%d@%d", k.Pos.Inode, k.Pos.Offset, k.Pos.Snapshot)
			valStr := fmt.Sprintf("%s sz=%d v=%d %s", k.Header.Type, k.Header.Size, k.Header.Version, display(k.Payload, valWidth-20))
			b.WriteString(displayPlain(keyStr, keyWidth))
			b.WriteString(": ")
			b.WriteString(displayPlain(valStr, valWidth))
		} else {
			b.WriteString("~")
		}
		b.WriteString("\033[K\r\n")
	}

	b.WriteString(strings.Repeat("─", v.width))
	b.WriteString("\033[K\r\n")

	pos := ""
	if v.atStart && v.atEnd {
		pos = "[all]"
	} else if v.atStart {
		pos = "[top]"
	} else if v.atEnd {
		pos = "[end]"
	}

	if v.status != "" {
		b.WriteString(" ")
		b.WriteString(v.status)
		b.WriteString(" ")
		b.WriteString(pos)
	} else {
		b.WriteString(" j/k:scroll g/G:jump /:search(inode:offset) q:quit ")
		b.WriteString(pos)
	}
	b.WriteString("\033[K")

	fmt.Print(b.String())
}

func displayPlain(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func display(b []byte, maxLen int) string {
	if len(b) == 0 {
		return "(empty)"
	}
	if utf8.Valid(b) && isPrintable(b) {
		runes := []rune(string(b))
		if len(runes) > maxLen-3 && maxLen > 3 {
			return string(runes[:maxLen-3]) + "..."
		}
		return string(runes)
	}
	hex := fmt.Sprintf("%x", b)
	if len(hex) > maxLen-3 && maxLen > 3 {
		return hex[:maxLen-3] + "..."
	}
	return hex
}

func isPrintable(b []byte) bool {
	for _, r := range string(b) {
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
