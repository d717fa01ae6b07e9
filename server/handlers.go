package server

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/seyuan/msig_coordinator/chain"
	"github.com/seyuan/msig_coordinator/engine"
	"github.com/seyuan/msig_coordinator/model"
)

func hexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

func decodeBody(r *http.Request, dst interface{}) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

func (s *Server) handleRegisterIdentity(w http.ResponseWriter, r *http.Request) {
	var req registerIdentityRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "malformed request body")
		return
	}

	identity, err := s.identities.Register(r.Context(), req.PublicKey)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"publicKey": identity.PublicKey,
		"address":   identity.Address,
		"scheme":    identity.Scheme,
	})
}

func (s *Server) handleCreateMultisig(w http.ResponseWriter, r *http.Request) {
	var req createMultisigRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "malformed request body")
		return
	}

	creator, err := chain.ParsePublicKey(req.PublicKey)
	if err != nil {
		badRequest(w, "invalid public key: "+err.Error())
		return
	}
	members := make([]chain.PublicKey, len(req.PublicKeys))
	for i, pkHex := range req.PublicKeys {
		pk, err := chain.ParsePublicKey(pkHex)
		if err != nil {
			badRequest(w, "invalid member public key: "+err.Error())
			return
		}
		members[i] = pk
	}

	detail, err := s.registry.Create(r.Context(), creator, members, req.Weights, req.Threshold, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewMultisig(detail))
}

func (s *Server) handleGetMultisig(w http.ResponseWriter, r *http.Request) {
	caller, err := s.authenticate(r, nil)
	if err != nil {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
		return
	}

	address := mux.Vars(r)["address"]
	isMember, err := s.registry.IsMember(r.Context(), address, caller.String(), false)
	if err != nil {
		writeError(w, err)
		return
	}
	if !isMember {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "not a member"})
		return
	}

	detail, err := s.registry.Get(r.Context(), address)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewMultisig(detail))
}

func (s *Server) handleAcceptMultisig(w http.ResponseWriter, r *http.Request) {
	var req acceptMultisigRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "malformed request body")
		return
	}

	pk, err := chain.ParsePublicKey(req.PublicKey)
	if err != nil {
		badRequest(w, "invalid public key: "+err.Error())
		return
	}
	sig, err := decodeHex(req.Signature)
	if err != nil {
		badRequest(w, "invalid signature encoding")
		return
	}

	detail, err := s.registry.Accept(r.Context(), mux.Vars(r)["address"], pk, sig)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewMultisig(detail))
}

func (s *Server) handleCreateProposal(w http.ResponseWriter, r *http.Request) {
	var req createProposalRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "malformed request body")
		return
	}

	pk, err := chain.ParsePublicKey(req.PublicKey)
	if err != nil {
		badRequest(w, "invalid public key: "+err.Error())
		return
	}
	payload, err := base64.StdEncoding.DecodeString(req.TransactionBytes)
	if err != nil {
		badRequest(w, "transactionBytes must be base64")
		return
	}
	sig, err := decodeHex(req.Signature)
	if err != nil {
		badRequest(w, "invalid signature encoding")
		return
	}

	proposal, err := s.coordinator.CreateProposal(r.Context(), req.MultisigAddress, pk, payload, sig, model.Network(req.Network), req.Description)
	if err != nil {
		writeError(w, err)
		return
	}

	sigs := []model.Signature{{PublicKey: pk.String(), Bytes: sig}}
	writeJSON(w, http.StatusCreated, viewProposal(proposal, sigs))
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "malformed request body")
		return
	}

	id, err := proposalID(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	pk, err := chain.ParsePublicKey(req.PublicKey)
	if err != nil {
		badRequest(w, "invalid public key: "+err.Error())
		return
	}
	sig, err := decodeHex(req.Signature)
	if err != nil {
		badRequest(w, "invalid signature encoding")
		return
	}

	reached, err := s.coordinator.Vote(r.Context(), id, pk, sig)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, voteResponse{HasReachedThreshold: reached})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "malformed request body")
		return
	}

	id, err := proposalID(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	pk, err := chain.ParsePublicKey(req.PublicKey)
	if err != nil {
		badRequest(w, "invalid public key: "+err.Error())
		return
	}
	sig, err := decodeHex(req.Signature)
	if err != nil {
		badRequest(w, "invalid signature encoding")
		return
	}

	if err := s.coordinator.Cancel(r.Context(), id, pk, sig); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "proposal cancelled"})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		badRequest(w, "unreadable body")
		return
	}
	caller, err := s.authenticate(r, body)
	if err != nil {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
		return
	}

	id, err := proposalID(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	status, err := s.coordinator.Verify(r.Context(), id, caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{Verified: true, Status: string(status)})
}

func (s *Server) handleVerifyByDigest(w http.ResponseWriter, r *http.Request) {
	status, err := s.coordinator.VerifyByDigest(r.Context(), mux.Vars(r)["digest"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{Verified: true, Status: string(status)})
}

func (s *Server) handleListProposals(w http.ResponseWriter, r *http.Request) {
	caller, err := s.authenticate(r, nil)
	if err != nil {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
		return
	}

	query := r.URL.Query()
	q := engine.ProposalQuery{
		MultisigAddress: query.Get("multisigAddress"),
		Network:         model.Network(query.Get("network")),
	}
	if q.MultisigAddress == "" {
		badRequest(w, "multisigAddress is required")
		return
	}
	if raw := query.Get("status"); raw != "" {
		status := model.ProposalStatus(raw)
		q.Status = &status
	}
	if raw := query.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			q.Limit = n
		}
	}
	if raw := query.Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			q.Offset = n
		}
	}

	list, err := s.coordinator.ListByMultisig(r.Context(), caller, q)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := listProposalsResponse{Proposals: []proposalView{}}
	for _, item := range list {
		resp.Proposals = append(resp.Proposals, viewProposal(item.Proposal, item.Signatures))
	}
	if q.Network != "" {
		n, err := s.coordinator.PendingCount(r.Context(), q.MultisigAddress, q.Network)
		if err == nil {
			resp.PendingCount = n
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func proposalID(r *http.Request) (uint64, error) {
	return strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
}
