package mixin

import "errors"

var (
	ErrMalformedInvocation    = errors.New("malformed mixin invocation")
	ErrUndefinedMixin         = errors.New("undefined mixin")
	ErrInvalidMixinType       = errors.New("invalid mixin type")
	ErrStyleMixinFileParse    = errors.New("unable to parse mixin file")
	ErrAuxiliaryMixinFileLoad = errors.New("unable to load mixin module")
	ErrGlobalLoadPhase        = errors.New("unable to load global mixins")
)
