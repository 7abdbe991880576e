package ceremony

import (
	"fmt"

	"github.com/dmitrijs2005/hotelauth/internal/client/api"
	"github.com/dmitrijs2005/hotelauth/internal/client/platform"
	"github.com/dmitrijs2005/hotelauth/internal/codec"
	"github.com/dmitrijs2005/hotelauth/internal/common"
)

const (
	minCredentialIDLength = 16
	maxCredentialIDLength = 1023
	maxUserHandleLength   = 64
)

func creationRequest(opts *api.CreationOptions, origin string) (platform.CreationRequest, error) {
	challenge, err := codec.DecodeExact(opts.Challenge, common.ChallengeSize)
	if err != nil {
		return platform.CreationRequest{}, fmt.Errorf("challenge: %w", err)
	}
	handle, err := codec.DecodeLen(opts.User.ID, 1, maxUserHandleLength)
	if err != nil {
		return platform.CreationRequest{}, fmt.Errorf("user handle: %w", err)
	}
	exclude, err := descriptorIDs(opts.ExcludeCredentials)
	if err != nil {
		return platform.CreationRequest{}, err
	}

	algs := make([]int64, 0, len(opts.Parameters))
	for _, p := range opts.Parameters {
		algs = append(algs, p.Algorithm)
	}

	return platform.CreationRequest{
		RPID:        opts.RP.ID,
		RPName:      opts.RP.Name,
		Origin:      origin,
		UserHandle:  handle,
		Username:    opts.User.Name,
		DisplayName: opts.User.DisplayName,
		Challenge:   challenge,
		Algorithms:  algs,
		Exclude:     exclude,
	}, nil
}

func assertionRequest(opts *api.RequestOptions, origin string) (platform.AssertionRequest, error) {
	challenge, err := codec.DecodeExact(opts.Challenge, common.ChallengeSize)
	if err != nil {
		return platform.AssertionRequest{}, fmt.Errorf("challenge: %w", err)
	}
	allow, err := descriptorIDs(opts.AllowCredentials)
	if err != nil {
		return platform.AssertionRequest{}, err
	}
	return platform.AssertionRequest{
		RPID:      opts.RPID,
		Origin:    origin,
		Challenge: challenge,
		Allow:     allow,
	}, nil
}

func descriptorIDs(ds []api.CredentialDescriptor) ([][]byte, error) {
	out := make([][]byte, 0, len(ds))
	for _, d := range ds {
		id, err := codec.DecodeLen(d.ID, minCredentialIDLength, maxCredentialIDLength)
		if err != nil {
			return nil, fmt.Errorf("credential id: %w", err)
		}
		out = append(out, id)
	}
	return out, nil
}
