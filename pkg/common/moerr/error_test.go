// Copyright 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package moerr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewError(t *testing.T) {
	err := NewTooManyPools(context.TODO(), 64)
	require.True(t, IsMoErrCode(err, ErrTooManyPools))
	require.Contains(t, err.Error(), "64")

	err = NewPoolClosed(context.TODO(), "test", 3)
	require.True(t, IsMoErrCode(err, ErrPoolClosed))
	require.Contains(t, err.Error(), "test")

	require.False(t, IsMoErrCode(errors.New("plain"), ErrInternal))
	require.True(t, IsMoErrCode(nil, Ok))
}

func TestConvertGoError(t *testing.T) {
	require.Nil(t, ConvertGoError(context.TODO(), nil))

	err := NewOOM(context.TODO())
	require.Equal(t, error(err), ConvertGoError(context.TODO(), err))

	converted := ConvertGoError(context.TODO(), errors.New("ordinary"))
	require.True(t, IsMoErrCode(converted, ErrInternal))
}

func TestConvertPanicError(t *testing.T) {
	err := ConvertPanicError(context.TODO(), "boom")
	require.True(t, IsMoErrCode(err, ErrInternal))

	inner := NewInvalidState(context.TODO(), "already closed")
	require.Equal(t, inner, ConvertPanicError(context.TODO(), inner))
}

func TestErrorDisplay(t *testing.T) {
	err := NewInternalError(context.TODO(), "oops").WithDetail("while draining")
	require.Equal(t, "internal error: oops: while draining", err.Display())
	require.Equal(t, "while draining", err.Detail())
}
