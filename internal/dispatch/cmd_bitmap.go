package dispatch

import (
	"math/bits"

	"github.com/example/redisd/internal/resp"
	"github.com/example/redisd/internal/values"
)

func registerBitmapCommands(t VerbTable) {
	add(t, HandlerSpec{Name: "SETBIT", Handler: cmdSetBit, MinArity: 4, MaxArity: 4, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "GETBIT", Handler: cmdGetBit, MinArity: 3, MaxArity: 3, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "BITCOUNT", Handler: cmdBitCount, MinArity: 2, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "BITOP", Handler: cmdBitOp, MinArity: 4, MaxArity: -1, FirstKey: 2, LastKey: -1, Step: 1, Write: true})
}

func cmdSetBit(c *Context) resp.Message {
	key := c.ArgStr(1)
	offset, err := parseInt(c.ArgStr(2))
	if err != nil || offset < 0 {
		return errMsg("ERR bit offset is not an integer or out of range")
	}
	bitVal, err := parseInt(c.ArgStr(3))
	if err != nil || (bitVal != 0 && bitVal != 1) {
		return errMsg("ERR bit is not an integer or out of range")
	}
	db := c.DB()
	v, _ := db.GetOrCreate(key, func() values.Value { return values.NewString(nil) })
	sv, ok := v.(*values.StringValue)
	if !ok {
		return wrongType()
	}
	byteIdx := int(offset / 8)
	bitIdx := uint(7 - offset%8)
	if byteIdx >= len(sv.Data) {
		grown := make([]byte, byteIdx+1)
		copy(grown, sv.Data)
		sv.Set(grown)
	}
	old := (sv.Data[byteIdx] >> bitIdx) & 1
	if bitVal == 1 {
		sv.Data[byteIdx] |= 1 << bitIdx
	} else {
		sv.Data[byteIdx] &^= 1 << bitIdx
	}
	db.Touch(key, "setbit")
	return intMsg(int64(old))
}

func cmdGetBit(c *Context) resp.Message {
	sv, ok, errReply := stringAt(c, c.ArgStr(1))
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		return intMsg(0)
	}
	offset, err := parseInt(c.ArgStr(2))
	if err != nil || offset < 0 {
		return errMsg("ERR bit offset is not an integer or out of range")
	}
	byteIdx := int(offset / 8)
	if byteIdx >= len(sv.Data) {
		return intMsg(0)
	}
	bitIdx := uint(7 - offset%8)
	return intMsg(int64((sv.Data[byteIdx] >> bitIdx) & 1))
}

func cmdBitCount(c *Context) resp.Message {
	sv, ok, errReply := stringAt(c, c.ArgStr(1))
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		return intMsg(0)
	}
	data := sv.Data
	if c.Argc() >= 4 {
		start, err1 := parseInt(c.ArgStr(2))
		end, err2 := parseInt(c.ArgStr(3))
		if err1 != nil || err2 != nil {
			return notInteger()
		}
		s, e := resolveRange(int(start), int(end), len(data))
		if s > e || s >= len(data) {
			data = nil
		} else {
			data = data[s : e+1]
		}
	}
	n := 0
	for _, b := range data {
		n += bits.OnesCount8(b)
	}
	return intMsg(int64(n))
}

func cmdBitOp(c *Context) resp.Message {
	op := upper(c.Arg(1))
	dest := c.ArgStr(2)
	var sources [][]byte
	maxLen := 0
	for i := 3; i < c.Argc(); i++ {
		sv, _, errReply := stringAt(c, c.ArgStr(i))
		if errReply.Type == resp.Error {
			return errReply
		}
		var data []byte
		if sv != nil {
			data = sv.Data
		}
		sources = append(sources, data)
		if len(data) > maxLen {
			maxLen = len(data)
		}
	}
	out := make([]byte, maxLen)
	switch op {
	case "AND":
		for i := range out {
			out[i] = 0xFF
		}
		for _, s := range sources {
			for i := 0; i < maxLen; i++ {
				var b byte
				if i < len(s) {
					b = s[i]
				}
				out[i] &= b
			}
		}
	case "OR":
		for _, s := range sources {
			for i := 0; i < maxLen; i++ {
				if i < len(s) {
					out[i] |= s[i]
				}
			}
		}
	case "XOR":
		for _, s := range sources {
			for i := 0; i < maxLen; i++ {
				if i < len(s) {
					out[i] ^= s[i]
				}
			}
		}
	case "NOT":
		if len(sources) != 1 {
			return errMsg("ERR BITOP NOT must be called with a single source key.")
		}
		for i := 0; i < maxLen; i++ {
			out[i] = ^sources[0][i]
		}
	default:
		return syntaxErr()
	}
	c.DB().Set(dest, values.NewString(out))
	return intMsg(int64(len(out)))
}
