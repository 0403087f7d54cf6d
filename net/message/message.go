// Package message defines the wire envelope and the five setup messages
// exchanged between buyer and seller, plus the post-setup messages the
// seller and buyer state machines exchange directly: the seller sending
// its Monero transfer proof to the buyer and waiting for an
// acknowledgement, and the buyer's deferred redeem encsig delivery.
package message

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type identifies the concrete message a wire envelope carries.
type Type byte

const (
	ContributionType Type = iota
	CounterContributionType
	TxLockType
	SellerSignaturesType
	BuyerSignaturesType
	EncSigNotificationType
	TransferProofType
	TransferProofAckType
	NilType
)

func (t Type) String() string {
	switch t {
	case ContributionType:
		return "Contribution"
	case CounterContributionType:
		return "CounterContribution"
	case TxLockType:
		return "TxLock"
	case SellerSignaturesType:
		return "SellerSignatures"
	case BuyerSignaturesType:
		return "BuyerSignatures"
	case EncSigNotificationType:
		return "EncSigNotification"
	case TransferProofType:
		return "TransferProof"
	case TransferProofAckType:
		return "TransferProofAck"
	default:
		return "unknown"
	}
}

// Message must be implemented by every setup-protocol message.
type Message interface {
	String() string
	Encode() ([]byte, error)
	Type() Type
}

// ErrInvalidMessage is returned by DecodeMessage when the envelope is empty
// or its tag byte does not match a known Type.
var ErrInvalidMessage = errors.New("invalid message bytes")

// DecodeMessage decodes a tagged envelope into its concrete Message.
func DecodeMessage(b []byte) (Message, error) {
	if len(b) == 0 {
		return nil, ErrInvalidMessage
	}

	switch Type(b[0]) {
	case ContributionType:
		var m *Contribution
		if err := json.Unmarshal(b[1:], &m); err != nil {
			return nil, err
		}
		return m, nil
	case CounterContributionType:
		var m *CounterContribution
		if err := json.Unmarshal(b[1:], &m); err != nil {
			return nil, err
		}
		return m, nil
	case TxLockType:
		var m *TxLockMessage
		if err := json.Unmarshal(b[1:], &m); err != nil {
			return nil, err
		}
		return m, nil
	case SellerSignaturesType:
		var m *SellerSignatures
		if err := json.Unmarshal(b[1:], &m); err != nil {
			return nil, err
		}
		return m, nil
	case BuyerSignaturesType:
		var m *BuyerSignatures
		if err := json.Unmarshal(b[1:], &m); err != nil {
			return nil, err
		}
		return m, nil
	case EncSigNotificationType:
		var m *EncSigNotification
		if err := json.Unmarshal(b[1:], &m); err != nil {
			return nil, err
		}
		return m, nil
	case TransferProofType:
		var m *TransferProof
		if err := json.Unmarshal(b[1:], &m); err != nil {
			return nil, err
		}
		return m, nil
	case TransferProofAckType:
		var m *TransferProofAck
		if err := json.Unmarshal(b[1:], &m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: unknown type byte %d", ErrInvalidMessage, b[0])
	}
}

func encode(t Type, v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(t)}, b...), nil
}

// Contribution is Msg0, sent by the buyer to open the handshake: the
// buyer's TxLock key, their XMR and BTC spend-key shares, the DLEQ proof
// linking the two, their XMR view-key share, and the address any BTC
// refund should be sent to.
type Contribution struct {
	TxLockPublicKey  []byte
	SpendKeyShareXMR []byte
	SpendKeyShareBTC []byte
	DLEqProof        []byte
	ViewKeyShare     []byte
	RefundScript     []byte
}

func (m *Contribution) String() string {
	return fmt.Sprintf("Contribution RefundScript=%x", m.RefundScript)
}

func (m *Contribution) Encode() ([]byte, error) { return encode(ContributionType, m) }
func (m *Contribution) Type() Type              { return ContributionType }

// CounterContribution is Msg1, the seller's reply: the seller's TxLock key,
// spend-key shares and DLEQ proof, their view-key share, and the addresses
// the seller wants any BTC redeem or punish proceeds sent to.
type CounterContribution struct {
	TxLockPublicKey  []byte
	SpendKeyShareXMR []byte
	SpendKeyShareBTC []byte
	DLEqProof        []byte
	ViewKeyShare     []byte
	RedeemScript     []byte
	PunishScript     []byte
}

func (m *CounterContribution) String() string {
	return fmt.Sprintf("CounterContribution RedeemScript=%x PunishScript=%x", m.RedeemScript, m.PunishScript)
}

func (m *CounterContribution) Encode() ([]byte, error) { return encode(CounterContributionType, m) }
func (m *CounterContribution) Type() Type              { return CounterContributionType }

// TxLockMessage is Msg2: the buyer's funded, unbroadcast TxLock, wrapped as
// a PSBT (bitcoin.EncodeTxLockPSBT) so the seller can validate its output
// before anyone signs anything.
type TxLockMessage struct {
	PSBT []byte
}

func (m *TxLockMessage) String() string          { return fmt.Sprintf("TxLock %d byte psbt", len(m.PSBT)) }
func (m *TxLockMessage) Encode() ([]byte, error)  { return encode(TxLockType, m) }
func (m *TxLockMessage) Type() Type               { return TxLockType }

// SellerSignatures is Msg3: the seller's pre-signature for TxCancel and
// their adaptor pre-signature for TxRefund, encrypted under the buyer's
// secp256k1 spend-key share.
type SellerSignatures struct {
	CancelSignature    []byte
	RefundEncryptedSig []byte
}

func (m *SellerSignatures) String() string         { return "SellerSignatures" }
func (m *SellerSignatures) Encode() ([]byte, error) { return encode(SellerSignaturesType, m) }
func (m *SellerSignatures) Type() Type              { return SellerSignaturesType }

// BuyerSignatures is Msg4: the buyer's pre-signatures for TxCancel and
// TxPunish. It does not carry encsig_buyer_redeem: the buyer must not
// produce that signature until the XMR lock is confirmed and T1 is still
// far enough away to refund, which can only
// be true well after setup finishes. That signature is delivered later,
// out of band, as EncSigNotification.
type BuyerSignatures struct {
	CancelSignature []byte
	PunishSignature []byte
}

func (m *BuyerSignatures) String() string         { return "BuyerSignatures" }
func (m *BuyerSignatures) Encode() ([]byte, error) { return encode(BuyerSignaturesType, m) }
func (m *BuyerSignatures) Type() Type              { return BuyerSignaturesType }

// EncSigNotification is the buyer's post-setup delivery of
// encsig_buyer_redeem, sent once it is safe to and observed by the
// seller's XmrLockProofSent -> EncSigLearned
// transition. TransferProof and TransferProofAck are the other
// post-setup messages.
type EncSigNotification struct {
	RedeemEncryptedSig []byte
}

func (m *EncSigNotification) String() string          { return "EncSigNotification" }
func (m *EncSigNotification) Encode() ([]byte, error) { return encode(EncSigNotificationType, m) }
func (m *EncSigNotification) Type() Type              { return EncSigNotificationType }

// TransferProof is sent by the seller once the Monero lock transaction has
// conf_target confirmations, on the XmrLockConfirmed -> XmrLockProofSent
// transition: the (tx_hash, tx_key) pair letting the buyer independently
// verify the lock without trusting the
// seller's word for it.
type TransferProof struct {
	TxHash string
	TxKey  string
}

func (m *TransferProof) String() string          { return fmt.Sprintf("TransferProof tx=%s", m.TxHash) }
func (m *TransferProof) Encode() ([]byte, error) { return encode(TransferProofType, m) }
func (m *TransferProof) Type() Type              { return TransferProofType }

// TransferProofAck is the buyer's acknowledgement that TransferProof
// verified, the signal the seller's XmrLockProofSent state is waiting on
// before it will accept an EncSigNotification.
type TransferProofAck struct{}

func (m *TransferProofAck) String() string          { return "TransferProofAck" }
func (m *TransferProofAck) Encode() ([]byte, error) { return encode(TransferProofAckType, m) }
func (m *TransferProofAck) Type() Type              { return TransferProofAckType }
