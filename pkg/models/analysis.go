package models

// ReturnValueType classifies a return statement expression as reported by the
// python analysis backend.
type ReturnValueType string

const (
	ReturnTypeVariable     ReturnValueType = "variable"
	ReturnTypeConstant     ReturnValueType = "constant"
	ReturnTypeList         ReturnValueType = "list"
	ReturnTypeDict         ReturnValueType = "dict"
	ReturnTypeFunctionCall ReturnValueType = "function_call"
	ReturnTypeExpression   ReturnValueType = "expression"
)

// ReturnInfo describes a single returned expression. Tuple returns produce
// several entries sharing the same Line.
type ReturnInfo struct {
	Type  ReturnValueType `json:"type"`
	Name  string          `json:"name,omitempty"`
	Value any             `json:"value,omitempty"`
	Line  int             `json:"line"`
}

// FunctionAnalysis is the response of the python function analysis backend.
type FunctionAnalysis struct {
	Success            bool         `json:"success"`
	FormalParameters   []string     `json:"formal_parameters"`
	InputVariableNames []string     `json:"input_variable_names"`
	Parameters         []string     `json:"parameters"`
	Returns            []ReturnInfo `json:"returns"`
	FunctionName       string       `json:"function_name"`
}

// DeclaredParameters returns the effective formal parameter list: the
// analyzer reports formal_parameters for modern scripts and falls back to the
// legacy parameters field for older ones.
func (a *FunctionAnalysis) DeclaredParameters() []string {
	if len(a.FormalParameters) > 0 {
		return a.FormalParameters
	}

	return a.Parameters
}

// ReturnsByLine groups return expressions by source line, preserving entry
// order within each line. Used to positionally match tuple returns against
// data_save nodes.
func (a *FunctionAnalysis) ReturnsByLine() map[int][]ReturnInfo {
	grouped := make(map[int][]ReturnInfo)
	for _, r := range a.Returns {
		grouped[r.Line] = append(grouped[r.Line], r)
	}

	return grouped
}
