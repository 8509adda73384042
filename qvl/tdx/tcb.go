package tdx

import (
	"encoding/json"
	"time"

	"github.com/attestgate/attestgate/internal/metrics"
	"github.com/attestgate/attestgate/qvl/errs"
)

// TcbComponent is one entry of a TCB level's required SVN vector.
type TcbComponent struct {
	SVN int `json:"svn"`
}

// TcbLevel is one entry of a TcbInfo's tcbLevels array.
type TcbLevel struct {
	Tcb struct {
		SgxComponents []TcbComponent `json:"sgxtcbcomponents,omitempty"`
		TdxComponents []TcbComponent `json:"tdxtcbcomponents,omitempty"`
		PceSvn        int            `json:"pcesvn"`
	} `json:"tcb"`
	TcbDate   time.Time `json:"tcbDate"`
	TcbStatus string    `json:"tcbStatus"`
}

// TcbInfo is the signed JSON policy document (Intel's TCB Info format)
// that evaluateTcb walks to find the applicable status for a quote.
type TcbInfo struct {
	TcbInfo struct {
		Version    int        `json:"version"`
		IssueDate  time.Time  `json:"issueDate"`
		NextUpdate time.Time  `json:"nextUpdate"`
		Fmspc      string     `json:"fmspc"`
		TcbLevels  []TcbLevel `json:"tcbLevels"`
	} `json:"tcbInfo"`
	Signature string `json:"signature"`
}

// ParseTcbInfo unmarshals a signed TCB info document.
func ParseTcbInfo(data []byte) (*TcbInfo, error) {
	var info TcbInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, errs.Wrap(errs.MalformedField, "failed to parse TCB info JSON", err)
	}
	return &info, nil
}

// TcbEvalOptions configures evaluateTcb.
type TcbEvalOptions struct {
	Time             time.Time
	EnforceUpToDate  bool
}

// evaluateTcb scans levels top-to-bottom and selects the first whose
// required SVN vector is component-wise <= the quote's SVNs and whose
// PCESVN <= the quote's PCESVN. When EnforceUpToDate is set, the selected
// level's status must be "UpToDate".
func evaluateTcb(info *TcbInfo, quoteSVNs []byte, quotePceSvn int, useTdx bool, opts TcbEvalOptions) (bool, error) {
	if opts.Time.Before(info.TcbInfo.IssueDate) || opts.Time.After(info.TcbInfo.NextUpdate) {
		return false, errs.New(errs.TcbRejected, "verification time outside TCB info validity window")
	}

	for _, level := range info.TcbInfo.TcbLevels {
		comps := level.Tcb.SgxComponents
		if useTdx {
			comps = level.Tcb.TdxComponents
		}
		if len(comps) != len(quoteSVNs) {
			continue
		}
		ok := true
		for i, c := range comps {
			if c.SVN > int(quoteSVNs[i]) {
				ok = false
				break
			}
		}
		if !ok || level.Tcb.PceSvn > quotePceSvn {
			continue
		}
		if opts.EnforceUpToDate && level.TcbStatus != "UpToDate" {
			return false, nil
		}
		return true, nil
	}
	return false, nil
}

// EvaluateSgxTcb implements evaluate_sgx_tcb: selects the applicable TCB
// level for an SGX quote's CPUSVN vector and PCESVN.
func EvaluateSgxTcb(cpuSvn [16]byte, pceSvn int, info *TcbInfo, opts TcbEvalOptions) (bool, error) {
	ok, err := evaluateTcb(info, cpuSvn[:], pceSvn, false, opts)
	metrics.TcbEvaluations.WithLabelValues("sgx", tcbStatusLabel(ok, err)).Inc()
	return ok, err
}

// EvaluateTdxTcb implements evaluate_tdx_tcb: selects the applicable TCB
// level for a TDX quote's TEE_TCB_SVN vector and PCESVN.
func EvaluateTdxTcb(teeTcbSvn [16]byte, pceSvn int, info *TcbInfo, opts TcbEvalOptions) (bool, error) {
	ok, err := evaluateTcb(info, teeTcbSvn[:], pceSvn, true, opts)
	metrics.TcbEvaluations.WithLabelValues("tdx", tcbStatusLabel(ok, err)).Inc()
	return ok, err
}

func tcbStatusLabel(ok bool, err error) string {
	if err != nil {
		return "error"
	}
	if ok {
		return "accepted"
	}
	return "rejected"
}
