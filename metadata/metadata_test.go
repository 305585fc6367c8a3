/*
 *
 * Copyright 2014 gRPC authors.
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
 *
 */

package metadata

import (
	"reflect"
	"testing"
)

func TestPairsMD(t *testing.T) {
	md := Pairs("k1", "v1", "k1", "v2")
	if got, want := md.Get("k1"), []string{"v1", "v2"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Get(k1) = %v; want %v", got, want)
	}
}

func TestPairsOddPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Pairs with an odd argument count did not panic")
		}
	}()
	Pairs("k1")
}

func TestGetCaseInsensitive(t *testing.T) {
	md := Pairs("Header", "42", "Header", "43", "Header", "44", "other", "1")
	if got, want := md.Get("HEADER"), []string{"42", "43", "44"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Get(HEADER) = %v; want %v", got, want)
	}
}

func TestSetReplaces(t *testing.T) {
	md := Pairs("my-optional-header", "42", "other-key", "999")
	md.Set("Other-Key", "1")
	if got, want := md.Get("other-key"), []string{"1"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Get(other-key) = %v; want %v", got, want)
	}
	if got, want := md.Get("my-optional-header"), []string{"42"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Get(my-optional-header) = %v; want %v", got, want)
	}
}

func TestAddAppends(t *testing.T) {
	md := Pairs("My-Optional-Header", "42")
	md.Add("my-OptIoNal-HeAder", "1", "2", "3")
	want := []string{"42", "1", "2", "3"}
	if got := md.Get("my-optional-header"); !reflect.DeepEqual(got, want) {
		t.Fatalf("Get() = %v; want %v", got, want)
	}
}

func TestDelete(t *testing.T) {
	md := Pairs("My-Optional-Header", "42", "other", "1")
	md.Delete("My-Optional-Header")
	if got := md.Get("my-optional-header"); got != nil {
		t.Fatalf("Get() after Delete = %v; want nil", got)
	}
	if md.Len() != 1 {
		t.Fatalf("Len() = %d; want 1", md.Len())
	}
}

func TestKeyOrderPreserved(t *testing.T) {
	md := Pairs("zeta", "1", "alpha", "2", "zeta", "3")
	if got, want := md.Keys(), []string{"zeta", "alpha"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Keys() = %v; want %v (insertion order of distinct keys)", got, want)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	orig := Pairs("key", "val")
	cpy := orig.Clone()
	orig.Set("key", "changed")
	if got, want := cpy.Get("key"), []string{"val"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("clone observed mutation of original: Get(key) = %v; want %v", got, want)
	}
}

func TestMerge(t *testing.T) {
	a := Pairs("foo", "bar")
	b := Pairs("foo", "baz", "zip", "zap")
	got := a.Merge(b)
	if want := []string{"bar", "baz"}; !reflect.DeepEqual(got.Get("foo"), want) {
		t.Fatalf("Merge foo = %v; want %v", got.Get("foo"), want)
	}
	if want := []string{"zap"}; !reflect.DeepEqual(got.Get("zip"), want) {
		t.Fatalf("Merge zip = %v; want %v", got.Get("zip"), want)
	}
	// a itself must be untouched.
	if got := a.Get("zip"); got != nil {
		t.Fatalf("Merge mutated receiver: a.Get(zip) = %v; want nil", got)
	}
}

func TestHTTP2RoundTrip(t *testing.T) {
	md := Pairs("x-custom", "hello", "x-bin-bin", string([]byte{0, 1, 2, 255}))
	fields := md.ToHTTP2Headers()
	got, err := FromHTTP2Headers(fields)
	if err != nil {
		t.Fatalf("FromHTTP2Headers() = %v", err)
	}
	if !reflect.DeepEqual(got.Get("x-custom"), md.Get("x-custom")) {
		t.Fatalf("round trip x-custom = %v; want %v", got.Get("x-custom"), md.Get("x-custom"))
	}
	if !reflect.DeepEqual(got.Get("x-bin-bin"), md.Get("x-bin-bin")) {
		t.Fatalf("round trip x-bin-bin = %v; want %v", got.Get("x-bin-bin"), md.Get("x-bin-bin"))
	}
}

func TestToHTTP2HeadersSkipsPseudoHeaders(t *testing.T) {
	md := Pairs("regular", "v")
	md.Set(":path", "/should/not/export")
	fields := md.ToHTTP2Headers()
	for _, f := range fields {
		if f.Name == ":path" {
			t.Fatalf("ToHTTP2Headers exported reserved pseudo-header %q", f.Name)
		}
	}
}

func TestFromHTTP2HeadersSkipsPseudoHeaders(t *testing.T) {
	fields := []HeaderField{{Name: ":path", Value: "/x"}, {Name: "regular", Value: "v"}}
	md, err := FromHTTP2Headers(fields)
	if err != nil {
		t.Fatalf("FromHTTP2Headers() = %v", err)
	}
	if md.Get(":path") != nil {
		t.Fatalf("FromHTTP2Headers imported reserved pseudo-header")
	}
	if got, want := md.Get("regular"), []string{"v"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Get(regular) = %v; want %v", got, want)
	}
}

func TestSetRejectsNonPrintableASCII(t *testing.T) {
	md := Pairs("x-custom", "safe")
	md.Set("x-custom", "bad\x01value")
	if got, want := md.Get("x-custom"), []string{"safe"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Set with a non-printable value changed x-custom to %v; want unchanged %v", got, want)
	}
}

func TestAddRejectsNonPrintableASCII(t *testing.T) {
	md := Pairs("x-custom", "safe")
	md.Add("x-custom", "bad\x7fvalue")
	if got, want := md.Get("x-custom"), []string{"safe"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Add with a non-printable value changed x-custom to %v; want unchanged %v", got, want)
	}
}

func TestSetAndAddAllowNonPrintableForBinKeys(t *testing.T) {
	raw := string([]byte{0, 1, 2, 255})
	var md MD
	md.Set("x-custom-bin", raw)
	if got, want := md.Get("x-custom-bin"), []string{raw}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Set on a -bin key rejected a raw binary value: got %v; want %v", got, want)
	}
	md.Add("x-custom-bin", raw)
	if got, want := md.Get("x-custom-bin"), []string{raw, raw}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Add on a -bin key rejected a raw binary value: got %v; want %v", got, want)
	}
}

func TestFromHTTP2HeadersCommaSplitCustomOnly(t *testing.T) {
	fields := []HeaderField{
		{Name: "x-custom", Value: "a,b,c"},
		{Name: "grpc-foo", Value: "a,b,c"},
	}
	md, err := FromHTTP2Headers(fields)
	if err != nil {
		t.Fatalf("FromHTTP2Headers() = %v", err)
	}
	if got, want := md.Get("x-custom"), []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Get(x-custom) = %v; want %v (comma-split)", got, want)
	}
	if got, want := md.Get("grpc-foo"), []string{"a,b,c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Get(grpc-foo) = %v; want %v (not comma-split)", got, want)
	}
}
