// Package hystrixgo wraps afex/hystrix-go down to the three operations
// store.Table drives: Init a named circuit, GoC to run a persistence call
// under that circuit with a context, and IsOpen to report tripped state for
// an OPTIONS/health surface. The teacher's wrapper also exposed Go/Do/DoC,
// config-update helpers, a statsd collector, and a ZapLog-typed Logger
// field; none of that has a caller in this tree (see DESIGN.md).
package hystrixgo

/*
 * Copyright 2020 Aldelo, LP
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

import (
	"context"
	"errors"

	"github.com/afex/hystrix-go/hystrix"

	"github.com/socube/WaarpGatewayKernel/internal/strutil"
)

// CircuitBreaker defines one specific circuit breaker by command name
//
// Config Properties:
//  1. Timeout = how long to wait for command to complete, in milliseconds, default = 1000
//  2. MaxConcurrentRequests = how many commands of the same type can run at the same time, default = 10
//  3. RequestVolumeThreshold = minimum number of requests needed before a circuit can be tripped due to health, default = 20
//  4. SleepWindow = how long to wait after a circuit opens before testing for recovery, in milliseconds, default = 5000
//  5. ErrorPercentThreshold = causes circuits to open once the rolling measure of errors exceeds this percent of requests, default = 50
type CircuitBreaker struct {
	// circuit breaker command name for this instance
	CommandName string

	// config fields
	TimeOut                int
	MaxConcurrentRequests   int
	RequestVolumeThreshold  int
	SleepWindow             int
	ErrorPercentThreshold   int

	// config to disable circuit breaker temporarily
	DisableCircuitBreaker bool
}

// RunLogic declares func alias for internal Run logic handler
type RunLogic func(dataIn interface{}, ctx ...context.Context) (dataOut interface{}, err error)

// FallbackLogic declares func alias for internal Fallback logic handler
type FallbackLogic func(dataIn interface{}, errIn error, ctx ...context.Context) (dataOut interface{}, err error)

// Init will initialize the circuit breaker with the given command name,
// a command name represents a specific service or api method that has circuit breaker being applied
func (c *CircuitBreaker) Init() error {
	if strutil.LenTrim(c.CommandName) <= 0 {
		return errors.New("CircuitBreaker Init Failed: Command Name is Required")
	}

	if c.TimeOut <= 0 {
		c.TimeOut = 1000
	}
	if c.MaxConcurrentRequests <= 0 {
		c.MaxConcurrentRequests = 10
	}
	if c.RequestVolumeThreshold <= 0 {
		c.RequestVolumeThreshold = 20
	}
	if c.SleepWindow <= 0 {
		c.SleepWindow = 5000
	}
	if c.ErrorPercentThreshold <= 0 {
		c.ErrorPercentThreshold = 50
	}

	hystrix.ConfigureCommand(c.CommandName, hystrix.CommandConfig{
		Timeout:                c.TimeOut,
		MaxConcurrentRequests:  c.MaxConcurrentRequests,
		RequestVolumeThreshold: c.RequestVolumeThreshold,
		SleepWindow:            c.SleepWindow,
		ErrorPercentThreshold:  c.ErrorPercentThreshold,
	})

	hystrix.SetLogger(hystrix.NoopLogger{})

	return nil
}

// GoC will execute async with circuit breaker in given context
//
// Parameters:
//  1. ctx = required, defines the context in which this method is to be run under
//  2. run = required, defines either inline or external function to be executed,
//     it is meant for a self contained function and accepts context.Context parameter, returns error
//  3. fallback = optional, defines either inline or external function to be executed as fallback when run fails,
//     it is meant for a self contained function and accepts context.Context and error parameters, returns error,
//     set to nil if fallback is not specified
//  4. dataIn = optional, input parameter to run and fallback func, may be nil if not needed
func (c *CircuitBreaker) GoC(ctx context.Context,
	run RunLogic,
	fallback FallbackLogic,
	dataIn interface{}) (interface{}, error) {
	if strutil.LenTrim(c.CommandName) <= 0 {
		return nil, errors.New("Exec with Context Async Failed: CircuitBreaker Command Name is Required")
	}
	if ctx == nil {
		return nil, errors.New("Exec with Context Async Failed: CircuitBreaker Context is Required")
	}
	if run == nil {
		return nil, errors.New("Exec with Context Async for '" + c.CommandName + "' Failed: Run Func Implementation is Required")
	}

	if !c.DisableCircuitBreaker {
		result := make(chan interface{})

		errChan := hystrix.GoC(ctx, c.CommandName,
			func(ct context.Context) error {
				outInf, outErr := run(dataIn, ct)
				if outErr != nil {
					return outErr
				}
				if outInf != nil {
					result <- outInf
				} else {
					result <- true
				}
				return nil
			},
			func(ct context.Context, er error) error {
				if fallback != nil {
					outInf, outErr := fallback(dataIn, er, ct)
					if outErr != nil {
						return outErr
					}
					if outInf != nil {
						result <- outInf
					} else {
						result <- true
					}
					return nil
				}
				return er
			})

		var err error
		var output interface{}

		select {
		case output = <-result:
		case err = <-errChan:
		}

		if err != nil {
			return nil, errors.New("Exec with Context Async for '" + c.CommandName + "' Failed: (GoC Action) " + err.Error())
		}
		return output, nil
	}

	obj, err := run(dataIn, ctx)
	if err != nil {
		return nil, errors.New("Exec with Context Directly for '" + c.CommandName + "' Failed: (Non-CircuitBreaker GoC Action) " + err.Error())
	}
	return obj, nil
}

// IsOpen reports whether this command's circuit is currently open (tripped),
// so callers exposing an OPTIONS/health surface can describe degraded state
// instead of only surfacing it through failed requests.
func (c *CircuitBreaker) IsOpen() bool {
	circuitBreaker, _, err := hystrix.GetCircuit(c.CommandName)
	if err != nil || circuitBreaker == nil {
		return false
	}
	return circuitBreaker.IsOpen()
}
