// SPDX-License-Identifier: Apache-2.0

package domain

import "errors"

var ErrInvalidBaseURL = errors.New("base url must be an absolute http(s) url")
var ErrInvalidMethod = errors.New("unsupported http method")
var ErrInvalidRateLimit = errors.New("rate limit must be a positive integer not above the maximum")
var ErrFileParamLocation = errors.New("file parameters must use the body location")
var ErrFileParamMethod = errors.New("file parameters are not allowed on endpoints without a request body")
var ErrAPINotFound = errors.New("api not found")
var ErrEndpointNotFound = errors.New("endpoint not found")
var ErrDepartmentNotFound = errors.New("department not found")
var ErrDepartmentInactive = errors.New("department is inactive")
var ErrGrantNotFound = errors.New("api is not assigned to this department")
var ErrUserNotFound = errors.New("user not found")
var ErrInvalidCredentials = errors.New("invalid email or password")
