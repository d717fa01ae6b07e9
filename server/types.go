package server

import (
	"github.com/shopspring/decimal"

	"github.com/seyuan/msig_coordinator/engine"
	"github.com/seyuan/msig_coordinator/model"
)

type registerIdentityRequest struct {
	PublicKey string `json:"publicKey"`
}

type createMultisigRequest struct {
	PublicKey  string   `json:"publicKey"`
	PublicKeys []string `json:"publicKeys"`
	Weights    []uint8  `json:"weights"`
	Threshold  uint     `json:"threshold"`
	Name       string   `json:"name,omitempty"`
}

type acceptMultisigRequest struct {
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
}

type createProposalRequest struct {
	MultisigAddress  string `json:"multisigAddress"`
	TransactionBytes string `json:"transactionBytes"`
	PublicKey        string `json:"publicKey"`
	Signature        string `json:"signature"`
	Network          string `json:"network"`
	Description      string `json:"description,omitempty"`
}

type voteRequest struct {
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
}

type cancelRequest struct {
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
}

type memberView struct {
	PublicKey  string `json:"publicKey"`
	Scheme     string `json:"scheme"`
	Weight     uint8  `json:"weight"`
	IsAccepted bool   `json:"isAccepted"`
	Order      uint   `json:"order"`
}

type multisigView struct {
	Address    string       `json:"address"`
	Threshold  uint         `json:"threshold"`
	IsVerified bool         `json:"isVerified"`
	Name       string       `json:"name,omitempty"`
	Members    []memberView `json:"members"`
}

type signatureView struct {
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
}

type proposalView struct {
	ID              uint64          `json:"id"`
	MultisigAddress string          `json:"multisigAddress"`
	Network         string          `json:"network"`
	Digest          string          `json:"digest"`
	Status          string          `json:"status"`
	ProposerAddress string          `json:"proposerAddress"`
	GasBudget       decimal.Decimal `json:"gasBudget"`
	Description     string          `json:"description,omitempty"`
	Signatures      []signatureView `json:"signatures,omitempty"`
}

type voteResponse struct {
	HasReachedThreshold bool `json:"hasReachedThreshold"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type verifyResponse struct {
	Verified bool   `json:"verified"`
	Status   string `json:"status"`
}

type listProposalsResponse struct {
	Proposals    []proposalView `json:"proposals"`
	PendingCount int64          `json:"pendingCount"`
}

func viewMultisig(detail *engine.MultisigDetail) multisigView {
	view := multisigView{
		Address:    detail.Multisig.Address,
		Threshold:  detail.Multisig.Threshold,
		IsVerified: detail.Multisig.IsVerified,
		Name:       detail.Multisig.Name,
	}
	for _, m := range detail.Members {
		view.Members = append(view.Members, memberView{
			PublicKey:  m.PublicKey,
			Scheme:     m.Scheme,
			Weight:     m.Weight,
			IsAccepted: m.IsAccepted,
			Order:      m.MemberOrder,
		})
	}
	return view
}

func viewProposal(p *model.Proposal, sigs []model.Signature) proposalView {
	view := proposalView{
		ID:              p.ID,
		MultisigAddress: p.MultisigAddress,
		Network:         p.Network,
		Digest:          p.Digest,
		Status:          string(p.Status),
		ProposerAddress: p.ProposerAddress,
		GasBudget:       p.GasBudget,
		Description:     p.Description,
	}
	for _, sig := range sigs {
		view.Signatures = append(view.Signatures, signatureView{
			PublicKey: sig.PublicKey,
			Signature: "0x" + hexEncode(sig.Bytes),
		})
	}
	return view
}
