package client

import "errors"

// NegotiationError is returned by the negotiation service client
type NegotiationError struct {
	upstreamFailure
}

func (e *NegotiationError) Error() string {
	return "negotiation service: " + e.upstreamFailure.Error()
}

// ContractError is returned by the contract service client
type ContractError struct {
	upstreamFailure
}

func (e *ContractError) Error() string {
	return "contract service: " + e.upstreamFailure.Error()
}

// IdentityError is returned by the identity service client
type IdentityError struct {
	upstreamFailure
}

func (e *IdentityError) Error() string {
	return "identity service: " + e.upstreamFailure.Error()
}

func failureOf(err error) upstreamFailure {
	var f *upstreamFailure
	if errors.As(err, &f) {
		return *f
	}
	return upstreamFailure{Message: err.Error(), Err: err}
}

func negotiationError(err error) error {
	if err == nil {
		return nil
	}
	return &NegotiationError{failureOf(err)}
}

func contractError(err error) error {
	if err == nil {
		return nil
	}
	return &ContractError{failureOf(err)}
}

func identityError(err error) error {
	if err == nil {
		return nil
	}
	return &IdentityError{failureOf(err)}
}
