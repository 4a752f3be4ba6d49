package ledger

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
)

// Discriminator é o prefixo de 8 bytes que o Anchor usa para rotear instruções
func Discriminator(method string) []byte {
	sum := sha256.Sum256([]byte("global:" + method))
	return sum[:8]
}

// AccountDiscriminator identifica o tipo de uma conta Anchor
func AccountDiscriminator(name string) []byte {
	sum := sha256.Sum256([]byte("account:" + name))
	return sum[:8]
}

// Encoder serializa argumentos de instrução em borsh (little-endian, sem tamanho para arrays fixos)
type Encoder struct {
	buf bytes.Buffer
}

// NewInstructionData começa um payload com o discriminador do método
func NewInstructionData(method string) *Encoder {
	e := &Encoder{}
	e.buf.Write(Discriminator(method))
	return e
}

func (e *Encoder) U8(v uint8) *Encoder {
	e.buf.WriteByte(v)
	return e
}

func (e *Encoder) U64(v uint64) *Encoder {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
	return e
}

func (e *Encoder) Bool(v bool) *Encoder {
	if v {
		return e.U8(1)
	}
	return e.U8(0)
}

// Fixed escreve um array de tamanho fixo ([u8; N])
func (e *Encoder) Fixed(b []byte) *Encoder {
	e.buf.Write(b)
	return e
}

func (e *Encoder) Bytes() []byte { return e.buf.Bytes() }
