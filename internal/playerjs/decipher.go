package playerjs

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dop251/goja"
)

// Decipherer runs the two URL transformations a player script defines: the
// signature scramble (a fixed sequence of reverse/splice/swap steps, parsed
// statically) and the n-parameter routine (too hairy to parse, so its
// function body is executed as-is in an embedded JS engine).
type Decipherer struct {
	script []byte
}

func NewDecipherer(script string) *Decipherer {
	return &Decipherer{script: []byte(script)}
}

// sigOp is one step of the signature scramble.
type sigOp func([]byte) []byte

func opReverse(bs []byte) []byte {
	for l, r := 0, len(bs)-1; l < r; l, r = l+1, r-1 {
		bs[l], bs[r] = bs[r], bs[l]
	}
	return bs
}

func opSplice(pos int) sigOp {
	return func(bs []byte) []byte {
		if pos < 0 || pos > len(bs) {
			return bs
		}
		return bs[pos:]
	}
}

func opSwap(arg int) sigOp {
	return func(bs []byte) []byte {
		if len(bs) == 0 {
			return bs
		}
		pos := arg % len(bs)
		bs[0], bs[pos] = bs[pos], bs[0]
		return bs
	}
}

const (
	jsVar      = `[a-zA-Z_\$][a-zA-Z_0-9]*`
	reverseDef = `:function\(a\)\{(?:return )?a\.reverse\(\)\}`
	spliceDef  = `:function\(a,b\)\{a\.splice\(0,b\)\}`
	swapDef    = `:function\(a,b\)\{var c=a\[0\];a\[0\]=a\[b(?:%a\.length)?\];a\[b(?:%a\.length)?\]=c(?:;return a)?\}`
)

var (
	opsObjPattern = regexp.MustCompile(fmt.Sprintf(
		`(?:var|let|const)\s+(%s)=\{((?:(?:%s%s|%s%s|%s%s),?\n?)+)\}\s*;?`,
		jsVar, jsVar, swapDef, jsVar, spliceDef, jsVar, reverseDef))
	reversePattern = regexp.MustCompile(fmt.Sprintf(`(?m)(?:^|,)(%s)%s`, jsVar, reverseDef))
	splicePattern  = regexp.MustCompile(fmt.Sprintf(`(?m)(?:^|,)(%s)%s`, jsVar, spliceDef))
	swapPattern    = regexp.MustCompile(fmt.Sprintf(`(?m)(?:^|,)(%s)%s`, jsVar, swapDef))

	sigFuncPatterns = []*regexp.Regexp{
		regexp.MustCompile(fmt.Sprintf(
			`function(?:\s+%s)?\(a\)\{a=a\.split\([^\)]*\);\s*((?:(?:a=)?%s(?:\.%s|\[[^\]]+\])\(a,\d+\);?\s*)+)return a\.join\([^\)]*\)\}`,
			jsVar, jsVar, jsVar)),
		regexp.MustCompile(fmt.Sprintf(
			`%s\s*=\s*function\(a\)\{a=a\.split\([^\)]*\);\s*((?:(?:a=)?%s(?:\.%s|\[[^\]]+\])\(a,\d+\);?\s*)+)return a\.join\([^\)]*\)\}`,
			jsVar, jsVar, jsVar)),
	}

	nNamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\.get\("n"\)\)\s*&&\s*\(b=([a-zA-Z0-9$]+)\[(\d+)\]\([a-zA-Z0-9$]+\).+\|\|([a-zA-Z0-9$]+)`),
		regexp.MustCompile(`\.get\("n"\)\)\s*&&\s*\(b=([a-zA-Z0-9$]+)\([a-zA-Z0-9$]+\)`),
		regexp.MustCompile(`\.get\("n"\).*?&&.*?([a-zA-Z0-9$]+)\([a-zA-Z0-9$]+\)`),
	}
)

// DecipherSignature unscrambles the s parameter of a ciphered stream URL.
func (d *Decipherer) DecipherSignature(s string) (string, error) {
	ops, err := d.parseSigOps()
	if err != nil {
		return "", err
	}
	bs := []byte(s)
	for _, op := range ops {
		bs = op(bs)
	}
	return string(bs), nil
}

// DecipherN transforms the n throttling parameter. A wrong n does not break
// the URL, it throttles it to uselessness.
func (d *Decipherer) DecipherN(n string) (string, error) {
	fn, err := d.extractNFunction()
	if err != nil {
		return "", err
	}
	return evalUnary(fn, n)
}

func (d *Decipherer) parseSigOps() ([]sigOp, error) {
	objMatch := opsObjPattern.FindSubmatch(d.script)
	callSeq := d.findSigCallSequence()
	if len(objMatch) < 3 || len(callSeq) == 0 {
		return nil, errors.New("signature routine not found in player script")
	}
	objName, objBody := objMatch[1], objMatch[2]

	var reverseKey, spliceKey, swapKey string
	if m := reversePattern.FindSubmatch(objBody); len(m) > 1 {
		reverseKey = string(m[1])
	}
	if m := splicePattern.FindSubmatch(objBody); len(m) > 1 {
		spliceKey = string(m[1])
	}
	if m := swapPattern.FindSubmatch(objBody); len(m) > 1 {
		swapKey = string(m[1])
	}

	callPattern, err := regexp.Compile(fmt.Sprintf(
		`(?:a=)?%s(?:\.(%s|%s|%s)|\[(?:"(%s|%s|%s)"|'(%s|%s|%s)')\])\(a,(\d+)\)`,
		regexp.QuoteMeta(string(objName)),
		regexp.QuoteMeta(reverseKey), regexp.QuoteMeta(spliceKey), regexp.QuoteMeta(swapKey),
		regexp.QuoteMeta(reverseKey), regexp.QuoteMeta(spliceKey), regexp.QuoteMeta(swapKey),
		regexp.QuoteMeta(reverseKey), regexp.QuoteMeta(spliceKey), regexp.QuoteMeta(swapKey)))
	if err != nil {
		return nil, err
	}

	var ops []sigOp
	for _, call := range callPattern.FindAllSubmatch(callSeq, -1) {
		if len(call) < 5 {
			continue
		}
		key := firstNonEmpty(call[1], call[2], call[3])
		arg, _ := strconv.Atoi(string(call[4]))
		switch key {
		case reverseKey:
			ops = append(ops, opReverse)
		case spliceKey:
			ops = append(ops, opSplice(arg))
		case swapKey:
			ops = append(ops, opSwap(arg))
		}
	}
	if len(ops) == 0 {
		return nil, errors.New("signature routine has no recognizable steps")
	}
	return ops, nil
}

func (d *Decipherer) findSigCallSequence() []byte {
	for _, re := range sigFuncPatterns {
		if m := re.FindSubmatch(d.script); len(m) > 1 {
			return m[1]
		}
	}
	return nil
}

func (d *Decipherer) extractNFunction() (string, error) {
	for _, re := range nNamePatterns {
		m := re.FindSubmatch(d.script)
		if len(m) == 0 {
			continue
		}
		// The indexed form resolves through an alias table; index 0 means
		// the fallback symbol in the last group is the real function.
		if len(m) == 4 {
			if idx, err := strconv.Atoi(string(m[2])); err == nil && idx == 0 {
				return d.extractFunctionBody(string(m[3]))
			}
		}
		return d.extractFunctionBody(string(m[1]))
	}
	return "", errors.New("n-routine not found in player script")
}

// extractFunctionBody slices the full source text of a named function out of
// the script, balancing braces and skipping string literals.
func (d *Decipherer) extractFunctionBody(name string) (string, error) {
	name = strings.TrimSpace(name)
	start := -1
	for _, def := range []string{name + "=function(", name + " = function(", "function " + name + "("} {
		if start = bytes.Index(d.script, []byte(def)); start >= 0 {
			break
		}
	}
	if start < 0 {
		return "", fmt.Errorf("function %s not defined in player script", name)
	}

	pos := start + bytes.IndexByte(d.script[start:], '{') + 1
	var strChar byte
	for depth := 1; depth > 0; pos++ {
		if pos >= len(d.script) {
			return "", fmt.Errorf("function %s body unterminated", name)
		}
		switch b := d.script[pos]; b {
		case '{':
			if strChar == 0 {
				depth++
			}
		case '}':
			if strChar == 0 {
				depth--
			}
		case '`', '"', '\'':
			if pos > 1 && d.script[pos-1] == '\\' && d.script[pos-2] != '\\' {
				continue
			}
			if strChar == 0 {
				strChar = b
			} else if strChar == b {
				strChar = 0
			}
		}
	}
	return string(d.script[start:pos]), nil
}

// evalUnary runs a single-argument JS function source against one string.
func evalUnary(fnSource, arg string) (string, error) {
	const binding = "__lss_n_fn"
	vm := goja.New()
	if _, err := vm.RunString(binding + "=" + fnSource); err != nil {
		return "", err
	}
	var fn func(string) string
	if err := vm.ExportTo(vm.Get(binding), &fn); err != nil {
		return "", err
	}
	return fn(arg), nil
}

func firstNonEmpty(groups ...[]byte) string {
	for _, g := range groups {
		if len(g) > 0 {
			return string(g)
		}
	}
	return ""
}
