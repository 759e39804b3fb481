// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package typeutil

// Set 是基于 map 的泛型集合，非并发安全。
type Set[T comparable] map[T]struct{}

// NewSet 创建并初始化一个集合。
func NewSet[T comparable](elements ...T) Set[T] {
	set := make(Set[T], len(elements))
	set.Insert(elements...)
	return set
}

// Insert 插入元素。
func (set Set[T]) Insert(elements ...T) {
	for _, element := range elements {
		set[element] = struct{}{}
	}
}

// Contain 当所有元素都在集合中时返回 true。
func (set Set[T]) Contain(elements ...T) bool {
	for _, element := range elements {
		if _, ok := set[element]; !ok {
			return false
		}
	}
	return true
}

// Remove 删除元素。
func (set Set[T]) Remove(elements ...T) {
	for _, element := range elements {
		delete(set, element)
	}
}

// Collect 以切片形式返回所有元素，顺序不保证。
func (set Set[T]) Collect() []T {
	elements := make([]T, 0, len(set))
	for element := range set {
		elements = append(elements, element)
	}
	return elements
}

func (set Set[T]) Len() int {
	return len(set)
}
