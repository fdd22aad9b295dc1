// Package params binds workflow parameters for task execution: flattening
// global parameters, deriving the syncDate timestamp family, and producing
// schedule-time business parameters.
package params
