package vm

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/core"
)

// Assemble translates assembly source into a program mapped at
// DefaultCodeBase. See AssembleAt.
func Assemble(source string) (*Program, error) {
	return AssembleAt(source, DefaultCodeBase, DefaultMaxOffset)
}

// AssembleAt translates assembly source into a program mapped at base.
//
// One instruction per line, written as its mnemonic and an optional
// argument. `name:` defines a label; `;` starts a comment. Arguments are
// decimal or 0x-prefixed hex, may be negative (taken modulo the field), and
// call targets may name a label. Execution starts at the label `main` when
// present, otherwise at the first instruction.
func AssembleAt(source string, base, maxOffset uint32) (*Program, error) {
	type pending struct {
		line  int
		op    Instruction
		arg   string
		label string
	}

	var (
		lines  []pending
		labels = make(map[string]int)
		offset int
	)

	scanner := bufio.NewScanner(strings.NewReader(source))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := scanner.Text()
		if i := strings.IndexByte(text, ';'); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		if strings.HasSuffix(text, ":") {
			name := strings.TrimSpace(strings.TrimSuffix(text, ":"))
			if name == "" || strings.ContainsAny(name, " \t") {
				return nil, core.NewError(core.CodeLoad, "line %d: invalid label %q", lineNo, name)
			}
			if _, dup := labels[name]; dup {
				return nil, core.NewError(core.CodeLoad, "line %d: duplicate label %q", lineNo, name)
			}
			labels[name] = offset
			continue
		}

		fields := strings.Fields(text)
		op, ok := instructionsByName[strings.ToLower(fields[0])]
		if !ok {
			return nil, core.NewError(core.CodeLoad, "line %d: unknown mnemonic %q", lineNo, fields[0])
		}
		p := pending{line: lineNo, op: op}
		switch {
		case op.HasArgument() && len(fields) == 2:
			p.arg = fields[1]
		case !op.HasArgument() && len(fields) == 1:
		default:
			return nil, core.NewError(core.CodeLoad, "line %d: wrong operand count for %s", lineNo, op)
		}
		lines = append(lines, p)
		offset += op.Size()
	}
	if err := scanner.Err(); err != nil {
		return nil, core.WrapError(core.CodeLoad, err, "read source")
	}

	words := make([]field.Element, 0, offset)
	for _, p := range lines {
		var arg *field.Element
		if p.op.HasArgument() {
			v, err := parseArgument(p.arg, p.op, labels)
			if err != nil {
				return nil, core.WrapError(core.CodeLoad, err, "line %d", p.line)
			}
			arg = &v
		}
		inst, err := NewEncodedInstruction(p.op, arg)
		if err != nil {
			return nil, core.WrapError(core.CodeLoad, err, "line %d", p.line)
		}
		words = append(words, inst.Words()...)
	}

	entry := uint32(0)
	if main, ok := labels["main"]; ok {
		entry = uint32(main)
	}

	return NewProgram(base, entry, maxOffset, words)
}

func parseArgument(text string, op Instruction, labels map[string]int) (field.Element, error) {
	if op == Call {
		if target, ok := labels[text]; ok {
			return field.New(uint64(target)), nil
		}
	}

	neg := strings.HasPrefix(text, "-")
	digits := strings.TrimPrefix(text, "-")
	v, err := strconv.ParseUint(digits, 0, 64)
	if err != nil {
		return field.Zero, core.NewError(core.CodeLoad, "invalid operand %q", text)
	}
	if v >= field.P {
		return field.Zero, core.NewError(core.CodeLoad, "operand %q is not below the field modulus", text)
	}
	if neg {
		return field.Zero.Sub(field.New(v)), nil
	}
	return field.New(v), nil
}

// Disassemble renders a program back into assembly, one instruction per line
func Disassemble(p *Program) string {
	var sb strings.Builder
	for _, inst := range p.Instructions() {
		sb.WriteString(inst.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
