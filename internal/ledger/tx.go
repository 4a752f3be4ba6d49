package ledger

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

const SignatureLength = 64

var ErrUnknownSigner = errors.New("signer is not required by the transaction")

// AccountMeta descreve uma conta referenciada por uma instrução
type AccountMeta struct {
	PublicKey  PublicKey
	IsSigner   bool
	IsWritable bool
}

func Writable(pk PublicKey) AccountMeta { return AccountMeta{PublicKey: pk, IsWritable: true} }

func Readonly(pk PublicKey) AccountMeta { return AccountMeta{PublicKey: pk} }

func WritableSigner(pk PublicKey) AccountMeta {
	return AccountMeta{PublicKey: pk, IsSigner: true, IsWritable: true}
}

// Instruction é uma chamada a um programa on-ledger
type Instruction struct {
	ProgramID PublicKey
	Accounts  []AccountMeta
	Data      []byte
}

type MessageHeader struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
}

type CompiledInstruction struct {
	ProgramIDIndex uint8
	Accounts       []uint8
	Data           []byte
}

// Message é a parte assinada da transação (formato legado)
type Message struct {
	Header          MessageHeader
	AccountKeys     []PublicKey
	RecentBlockhash Hash
	Instructions    []CompiledInstruction
}

type Transaction struct {
	Signatures [][]byte
	Message    Message
}

// NewTransaction compila as instruções: pagador primeiro, depois signers graváveis,
// signers somente leitura, contas graváveis e contas somente leitura
func NewTransaction(payer PublicKey, blockhash Hash, ixs ...Instruction) (*Transaction, error) {
	if len(ixs) == 0 {
		return nil, errors.New("transaction without instructions")
	}

	type flags struct{ signer, writable bool }
	order := []PublicKey{payer}
	metas := map[PublicKey]*flags{payer: {signer: true, writable: true}}
	add := func(pk PublicKey, signer, writable bool) {
		if f, ok := metas[pk]; ok {
			f.signer = f.signer || signer
			f.writable = f.writable || writable
			return
		}
		metas[pk] = &flags{signer: signer, writable: writable}
		order = append(order, pk)
	}
	for _, ix := range ixs {
		for _, a := range ix.Accounts {
			add(a.PublicKey, a.IsSigner, a.IsWritable)
		}
		add(ix.ProgramID, false, false)
	}

	var ws, rs, wu, ru []PublicKey
	for _, pk := range order {
		f := metas[pk]
		switch {
		case f.signer && f.writable:
			ws = append(ws, pk)
		case f.signer:
			rs = append(rs, pk)
		case f.writable:
			wu = append(wu, pk)
		default:
			ru = append(ru, pk)
		}
	}
	keys := make([]PublicKey, 0, len(order))
	keys = append(keys, ws...)
	keys = append(keys, rs...)
	keys = append(keys, wu...)
	keys = append(keys, ru...)
	if len(keys) > 256 {
		return nil, fmt.Errorf("too many accounts: %d", len(keys))
	}

	index := make(map[PublicKey]uint8, len(keys))
	for i, pk := range keys {
		index[pk] = uint8(i)
	}

	msg := Message{
		Header: MessageHeader{
			NumRequiredSignatures:       uint8(len(ws) + len(rs)),
			NumReadonlySignedAccounts:   uint8(len(rs)),
			NumReadonlyUnsignedAccounts: uint8(len(ru)),
		},
		AccountKeys:     keys,
		RecentBlockhash: blockhash,
	}
	for _, ix := range ixs {
		ci := CompiledInstruction{ProgramIDIndex: index[ix.ProgramID], Data: ix.Data}
		for _, a := range ix.Accounts {
			ci.Accounts = append(ci.Accounts, index[a.PublicKey])
		}
		msg.Instructions = append(msg.Instructions, ci)
	}

	return &Transaction{
		Signatures: make([][]byte, msg.Header.NumRequiredSignatures),
		Message:    msg,
	}, nil
}

// Serialize retorna os bytes da mensagem (o que é efetivamente assinado)
func (m Message) Serialize() []byte {
	var buf bytes.Buffer
	buf.WriteByte(m.Header.NumRequiredSignatures)
	buf.WriteByte(m.Header.NumReadonlySignedAccounts)
	buf.WriteByte(m.Header.NumReadonlyUnsignedAccounts)
	buf.Write(EncodeCompactU16(len(m.AccountKeys)))
	for _, k := range m.AccountKeys {
		buf.Write(k[:])
	}
	buf.Write(m.RecentBlockhash[:])
	buf.Write(EncodeCompactU16(len(m.Instructions)))
	for _, ix := range m.Instructions {
		buf.WriteByte(ix.ProgramIDIndex)
		buf.Write(EncodeCompactU16(len(ix.Accounts)))
		buf.Write(ix.Accounts)
		buf.Write(EncodeCompactU16(len(ix.Data)))
		buf.Write(ix.Data)
	}
	return buf.Bytes()
}

// Sign assina a mensagem com cada signer; todos precisam estar entre os signers exigidos
func (tx *Transaction) Sign(signers ...Signer) error {
	msg := tx.Message.Serialize()
	required := int(tx.Message.Header.NumRequiredSignatures)
	for _, s := range signers {
		idx := -1
		for i := 0; i < required; i++ {
			if tx.Message.AccountKeys[i] == s.PublicKey() {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrUnknownSigner, s.PublicKey())
		}
		sig, err := s.SignMessage(msg)
		if err != nil {
			return fmt.Errorf("sign with %s: %w", s.PublicKey(), err)
		}
		if len(sig) != SignatureLength {
			return fmt.Errorf("sign with %s: signature has %d bytes", s.PublicKey(), len(sig))
		}
		tx.Signatures[idx] = sig
	}
	return nil
}

func (tx *Transaction) IsSigned() bool {
	for _, s := range tx.Signatures {
		if len(s) != SignatureLength {
			return false
		}
	}
	return len(tx.Signatures) > 0
}

// Signature é a assinatura do pagador, que identifica a transação no ledger
func (tx *Transaction) Signature() string {
	if len(tx.Signatures) == 0 || len(tx.Signatures[0]) != SignatureLength {
		return ""
	}
	return base58.Encode(tx.Signatures[0])
}

func (tx *Transaction) Serialize() ([]byte, error) {
	if !tx.IsSigned() {
		return nil, errors.New("transaction is not fully signed")
	}
	var buf bytes.Buffer
	buf.Write(EncodeCompactU16(len(tx.Signatures)))
	for _, s := range tx.Signatures {
		buf.Write(s)
	}
	buf.Write(tx.Message.Serialize())
	return buf.Bytes(), nil
}

// EncodeCompactU16 codifica tamanhos no formato shortvec (7 bits por byte)
func EncodeCompactU16(n int) []byte {
	out := make([]byte, 0, 3)
	v := uint16(n)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}
